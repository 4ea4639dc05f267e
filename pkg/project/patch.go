package project

import "time"

// Patch is the typed partial-update contract for a project. Nil fields are
// left untouched; non-nil fields replace the corresponding project field
// wholesale (shallow merge). All mutation flows through the state container
// applying one of these, so ad hoc map merges never reach the model.
type Patch struct {
	Name            *string `json:"name,omitempty"`
	TargetAudience  *string `json:"targetAudience,omitempty"`
	Problem         *string `json:"problem,omitempty"`
	CurrentSolution *string `json:"currentSolution,omitempty"`
	Differentiation *string `json:"differentiation,omitempty"`
	Vision          *string `json:"vision,omitempty"`

	Objectives []Objective        `json:"objectives,omitempty"`
	KPIs       map[int][]KPI      `json:"kpis,omitempty"`
	Team       []TeamRole         `json:"team,omitempty"`
	Obeya      *ObeyaChecklist    `json:"obeya,omitempty"`
	Backlog    []Epic             `json:"backlog,omitempty"`
	Estimates  map[string]float64 `json:"estimates,omitempty"`
	Roadmap    *Roadmap           `json:"roadmap,omitempty"`
	Sprints    []Sprint           `json:"sprints,omitempty"`
}

// Apply merges the patch into the project and stamps UpdatedAt.
func (patch *Patch) Apply(p *Project) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.TargetAudience != nil {
		p.TargetAudience = *patch.TargetAudience
	}
	if patch.Problem != nil {
		p.Problem = *patch.Problem
	}
	if patch.CurrentSolution != nil {
		p.CurrentSolution = *patch.CurrentSolution
	}
	if patch.Differentiation != nil {
		p.Differentiation = *patch.Differentiation
	}
	if patch.Vision != nil {
		p.Vision = *patch.Vision
	}
	if patch.Objectives != nil {
		p.Objectives = patch.Objectives
	}
	if patch.KPIs != nil {
		p.KPIs = patch.KPIs
	}
	if patch.Team != nil {
		p.Team = patch.Team
	}
	if patch.Obeya != nil {
		p.Obeya = *patch.Obeya
	}
	if patch.Backlog != nil {
		p.Backlog = patch.Backlog
	}
	if patch.Estimates != nil {
		p.Estimates = patch.Estimates
	}
	if patch.Roadmap != nil {
		p.Roadmap = *patch.Roadmap
	}
	if patch.Sprints != nil {
		p.Sprints = patch.Sprints
	}
	p.UpdatedAt = time.Now().UTC()
}

// IsZero reports whether the patch carries no changes.
func (patch *Patch) IsZero() bool {
	return patch.Name == nil && patch.TargetAudience == nil && patch.Problem == nil &&
		patch.CurrentSolution == nil && patch.Differentiation == nil && patch.Vision == nil &&
		patch.Objectives == nil && patch.KPIs == nil && patch.Team == nil &&
		patch.Obeya == nil && patch.Backlog == nil && patch.Estimates == nil &&
		patch.Roadmap == nil && patch.Sprints == nil
}
