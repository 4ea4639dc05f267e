// Package project defines the project document model: the root aggregate a
// user authors across the guided phases, its nested sprint entities, and the
// normalization that every load path runs before a project enters memory.
package project

import (
	"encoding/json"
	"time"
)

// Sprint status constants.
const (
	SprintStatusPlanned   = "planned"
	SprintStatusActive    = "active"
	SprintStatusCompleted = "completed"
)

// ValidSprintStatuses returns all valid sprint statuses.
func ValidSprintStatuses() []string {
	return []string{SprintStatusPlanned, SprintStatusActive, SprintStatusCompleted}
}

// IsValidSprintStatus checks if a status string is valid.
func IsValidSprintStatus(status string) bool {
	for _, s := range ValidSprintStatuses() {
		if status == s {
			return true
		}
	}
	return false
}

// ID identifies a project in the remote store. The zero value means the
// project has not been persisted yet; a persisted ID carries the
// store-assigned identifier. This replaces any guessing about whether an
// identifier is local or remote.
type ID struct {
	value string
}

// PersistedID wraps a store-assigned identifier.
func PersistedID(value string) ID {
	return ID{value: value}
}

// Persisted reports whether the project has a store-assigned identifier.
func (id ID) Persisted() bool {
	return id.value != ""
}

// String returns the store-assigned identifier, or "" when unsaved.
func (id ID) String() string {
	return id.value
}

// MarshalJSON encodes a persisted ID as its string value and an unsaved ID as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if !id.Persisted() {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts a string identifier or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*id = ID{value: value}
	return nil
}

// Objective is a single project objective with its rationale.
type Objective struct {
	Text      string `json:"text"`
	Rationale string `json:"rationale,omitempty"`
}

// KPI measures progress against an objective.
type KPI struct {
	Name      string `json:"name"`
	Target    string `json:"target"`
	Rationale string `json:"rationale,omitempty"`
}

// TeamRole describes one role on the project team.
type TeamRole struct {
	Role      string   `json:"role"`
	Skills    []string `json:"skills,omitempty"`
	Count     int      `json:"count"`
	Rationale string   `json:"rationale,omitempty"`
}

// ObeyaItem is one checklist entry for the project war room.
type ObeyaItem struct {
	Category string `json:"category"`
	Item     string `json:"item"`
	Checked  bool   `json:"checked"`
}

// ObeyaChecklist groups the war-room checklist items.
type ObeyaChecklist struct {
	Items []ObeyaItem `json:"items"`
}

// Story is a backlog item contributing to a key result. Estimates live
// out-of-line in Project.Estimates so estimation can be revised independent
// of backlog edits.
type Story struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	KeyResult string `json:"keyResult,omitempty"`
	EpicID    string `json:"epicId,omitempty"` // set only on flattened views
}

// Epic groups stories in the backlog.
type Epic struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Stories []Story `json:"stories"`
}

// Roadmap is the MVP planning object produced by the roadmap phase.
type Roadmap struct {
	MVPStoryIDs []string `json:"mvpStoryIds,omitempty"`
	Milestones  []string `json:"milestones,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// SprintMember is one person allocated to a sprint.
type SprintMember struct {
	Name     string  `json:"name"`
	Hours    float64 `json:"hours"`
	FocusPct float64 `json:"focus"`
}

// Capacity holds a sprint's member allocations. Total is always derived from
// the members, never independently settable.
type Capacity struct {
	Total   float64        `json:"total"`
	Members []SprintMember `json:"members"`
}

// Recompute returns the derived capacity total: sum of hours weighted by focus.
func (c *Capacity) Recompute() float64 {
	var total float64
	for i := range c.Members {
		total += c.Members[i].Hours * c.Members[i].FocusPct / 100
	}
	c.Total = total
	return total
}

// Task status constants for the sprint kanban.
const (
	TaskStatusTodo  = "todo"
	TaskStatusDoing = "doing"
	TaskStatusDone  = "done"
)

// Task is one kanban card in a sprint.
type Task struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	Estimated float64 `json:"estimated"`
	Assignee  string  `json:"assignee,omitempty"`
}

// Event is one sprint calendar entry.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Day   string `json:"day"`
	Kind  string `json:"kind,omitempty"`
}

// Retro collects retrospective notes in start/stop/continue form.
type Retro struct {
	Start    []string `json:"start"`
	Stop     []string `json:"stop"`
	Continue []string `json:"continue"`
}

// BurnPoint is one day's remaining/completed work snapshot.
type BurnPoint struct {
	Day       string  `json:"day"`
	Remaining float64 `json:"remaining"`
	Completed float64 `json:"completed"`
}

// SprintKPIs holds the per-sprint metric snapshot.
type SprintKPIs struct {
	Velocity       float64        `json:"velocity"`
	CapacityPct    float64        `json:"capacityPct"`
	PerformancePct float64        `json:"performancePct"`
	Mood           map[string]int `json:"mood,omitempty"`
	Burndown       []BurnPoint    `json:"burndown,omitempty"`
	Burnup         []BurnPoint    `json:"burnup,omitempty"`
}

// Sprint is one time-boxed execution cycle nested under a project.
// IDs are sequential 1-based integers assigned at creation.
type Sprint struct {
	ID       int        `json:"id"`
	Title    string     `json:"title"`
	Status   string     `json:"status"`
	Goals    []string   `json:"goals"`
	Capacity Capacity   `json:"capacity"`
	Tasks    []Task     `json:"tasks"`
	Events   []Event    `json:"events"`
	Notes    string     `json:"notes,omitempty"`
	Retro    Retro      `json:"retro"`
	KPIs     SprintKPIs `json:"kpis"`
}

// Project is the root aggregate document authored across the guided phases.
//
//nolint:govet // field order follows the phase sequence, not alignment
type Project struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`

	// Vision-intake free text.
	TargetAudience  string `json:"targetAudience,omitempty"`
	Problem         string `json:"problem,omitempty"`
	CurrentSolution string `json:"currentSolution,omitempty"`
	Differentiation string `json:"differentiation,omitempty"`

	Vision     string             `json:"vision,omitempty"`
	Objectives []Objective        `json:"objectives"`
	KPIs       map[int][]KPI      `json:"kpis"` // keyed by objective index
	Team       []TeamRole         `json:"team"`
	Obeya      ObeyaChecklist     `json:"obeya"`
	Backlog    []Epic             `json:"backlog"`
	Estimates  map[string]float64 `json:"estimates"` // story ID -> hours
	Roadmap    Roadmap            `json:"roadmap"`
	Sprints    []Sprint           `json:"sprints"`

	// LegacySprint is the deprecated single-sprint form some stored projects
	// still carry. Normalize folds it into Sprints; it is never written back.
	LegacySprint *Sprint `json:"sprint,omitempty"`
}

// NewEmpty returns the canonical empty project: all collections empty,
// unsaved ID, empty name.
func NewEmpty() *Project {
	return &Project{
		Objectives: []Objective{},
		KPIs:       map[int][]KPI{},
		Team:       []TeamRole{},
		Obeya:      ObeyaChecklist{Items: []ObeyaItem{}},
		Backlog:    []Epic{},
		Estimates:  map[string]float64{},
		Sprints:    []Sprint{},
	}
}

// Normalize defensively defaults missing collections and folds a legacy
// single-sprint object into the sprints array. It is idempotent and must run
// on every path that introduces a project into memory: remote fetch, cache
// restore, and HTTP input.
func (p *Project) Normalize() {
	if p.Objectives == nil {
		p.Objectives = []Objective{}
	}
	if p.KPIs == nil {
		p.KPIs = map[int][]KPI{}
	}
	if p.Team == nil {
		p.Team = []TeamRole{}
	}
	if p.Obeya.Items == nil {
		p.Obeya.Items = []ObeyaItem{}
	}
	if p.Backlog == nil {
		p.Backlog = []Epic{}
	}
	if p.Estimates == nil {
		p.Estimates = map[string]float64{}
	}
	if p.Sprints == nil {
		p.Sprints = []Sprint{}
	}

	p.migrateLegacySprint()
	p.backfillEntityIDs()
}

// backfillEntityIDs assigns identifiers to entities that arrived without one,
// so estimate keys and kanban references always have a stable target.
func (p *Project) backfillEntityIDs() {
	for i := range p.Backlog {
		if p.Backlog[i].ID == "" {
			p.Backlog[i].ID = NewEntityID()
		}
		for j := range p.Backlog[i].Stories {
			if p.Backlog[i].Stories[j].ID == "" {
				p.Backlog[i].Stories[j].ID = NewEntityID()
			}
		}
	}
	for i := range p.Sprints {
		s := &p.Sprints[i]
		for j := range s.Tasks {
			if s.Tasks[j].ID == "" {
				s.Tasks[j].ID = NewEntityID()
			}
		}
		for j := range s.Events {
			if s.Events[j].ID == "" {
				s.Events[j].ID = NewEntityID()
			}
		}
	}
}

// migrateLegacySprint wraps a deprecated single sprint object into a
// one-element sprints array. Only runs when the sprints array is empty, which
// makes a second pass a no-op.
func (p *Project) migrateLegacySprint() {
	if len(p.Sprints) > 0 || p.LegacySprint == nil {
		p.LegacySprint = nil
		return
	}

	legacy := *p.LegacySprint
	if isEmptySprint(&legacy) {
		p.LegacySprint = nil
		return
	}

	legacy.ID = 1
	legacy.Title = "Sprint 1"
	legacy.Status = SprintStatusActive
	p.Sprints = []Sprint{legacy}
	p.LegacySprint = nil
}

// isEmptySprint reports whether a legacy sprint carries no user data worth
// migrating.
func isEmptySprint(s *Sprint) bool {
	return len(s.Goals) == 0 && len(s.Tasks) == 0 && len(s.Events) == 0 &&
		len(s.Capacity.Members) == 0 && s.Notes == "" &&
		len(s.Retro.Start) == 0 && len(s.Retro.Stop) == 0 && len(s.Retro.Continue) == 0
}

// Savable reports whether the project is eligible for remote persistence.
// A non-empty name is the sole gate.
func (p *Project) Savable() bool {
	return p.Name != ""
}

// Clone returns a deep copy via JSON round-trip. Used when handing snapshots
// across the state-container boundary so callers cannot mutate shared state.
func (p *Project) Clone() *Project {
	data, err := json.Marshal(p)
	if err != nil {
		// The model contains only JSON-serializable fields.
		panic("project: clone marshal: " + err.Error())
	}
	clone := &Project{}
	if err := json.Unmarshal(data, clone); err != nil {
		panic("project: clone unmarshal: " + err.Error())
	}
	clone.Normalize()
	return clone
}
