// Package sprint manages the sprints array nested in the current project:
// create with derived ids and defaults, shallow-merge updates, and removal.
// All writes go through the state container; concurrent callers follow
// last-write-wins on the array, which is accepted for single-user usage.
package sprint

import (
	"fmt"

	"agileforge/pkg/calc"
	"agileforge/pkg/project"
	"agileforge/pkg/state"
)

// Patch is the typed partial update for one sprint. Nil fields are left
// untouched; non-nil fields replace the sprint's field wholesale.
type Patch struct {
	Title   *string                `json:"title,omitempty"`
	Status  *string                `json:"status,omitempty"`
	Goals   []string               `json:"goals,omitempty"`
	Members []project.SprintMember `json:"members,omitempty"`
	Tasks   []project.Task         `json:"tasks,omitempty"`
	Events  []project.Event        `json:"events,omitempty"`
	Notes   *string                `json:"notes,omitempty"`
	Retro   *project.Retro         `json:"retro,omitempty"`
	KPIs    *project.SprintKPIs    `json:"kpis,omitempty"`
}

// Manager exposes sprint CRUD over the project state container.
type Manager struct {
	state *state.Manager
}

// NewManager creates a sprint manager bound to the state container.
func NewManager(st *state.Manager) *Manager {
	return &Manager{state: st}
}

// Add appends a new sprint: the next sequential id is the current count + 1,
// defaults are applied, then caller overrides are merged. The returned sprint
// is the caller's only way to learn the assigned id.
func (m *Manager) Add(overrides Patch) project.Sprint {
	current := m.state.Current()

	s := project.Sprint{
		ID:     len(current.Sprints) + 1,
		Title:  fmt.Sprintf("Sprint %d", len(current.Sprints)+1),
		Status: project.SprintStatusPlanned,
		Goals:  []string{},
		Tasks:  []project.Task{},
		Events: []project.Event{},
	}
	applyPatch(&s, overrides)
	s.Capacity.Recompute()

	sprints := append(current.Sprints, s)
	m.state.UpdateProject(project.Patch{Sprints: sprints})
	return s
}

// Update shallow-merges the patch onto the matching sprint. A missing id is
// a silent no-op, not an error.
func (m *Manager) Update(id int, patch Patch) {
	current := m.state.Current()

	updated := false
	for i := range current.Sprints {
		if current.Sprints[i].ID != id {
			continue
		}
		applyPatch(&current.Sprints[i], patch)
		current.Sprints[i].Capacity.Recompute()
		updated = true
		break
	}
	if !updated {
		return
	}

	m.state.UpdateProject(project.Patch{Sprints: current.Sprints})
}

// Delete removes the matching sprint. A missing id is a silent no-op.
func (m *Manager) Delete(id int) {
	current := m.state.Current()

	removed := false
	sprints := make([]project.Sprint, 0, len(current.Sprints))
	for i := range current.Sprints {
		if current.Sprints[i].ID == id {
			removed = true
			continue
		}
		sprints = append(sprints, current.Sprints[i])
	}
	if !removed {
		return
	}

	m.state.UpdateProject(project.Patch{Sprints: sprints})
}

// SnapshotBurn recomputes the day's burn point for the matching sprint.
// Called whenever a task's status changes.
func (m *Manager) SnapshotBurn(id int, day string) {
	current := m.state.Current()

	for i := range current.Sprints {
		if current.Sprints[i].ID != id {
			continue
		}
		calc.SnapshotBurn(&current.Sprints[i], day)
		m.state.UpdateProject(project.Patch{Sprints: current.Sprints})
		return
	}
}

func applyPatch(s *project.Sprint, patch Patch) {
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.Status != nil && project.IsValidSprintStatus(*patch.Status) {
		s.Status = *patch.Status
	}
	if patch.Goals != nil {
		s.Goals = patch.Goals
	}
	if patch.Members != nil {
		s.Capacity.Members = patch.Members
	}
	if patch.Tasks != nil {
		s.Tasks = patch.Tasks
	}
	if patch.Events != nil {
		s.Events = patch.Events
	}
	if patch.Notes != nil {
		s.Notes = *patch.Notes
	}
	if patch.Retro != nil {
		s.Retro = *patch.Retro
	}
	if patch.KPIs != nil {
		s.KPIs = *patch.KPIs
	}
}
