package webui

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"agileforge/pkg/calc"
	"agileforge/pkg/logx"
	"agileforge/pkg/project"
	"agileforge/pkg/sprint"
	"agileforge/pkg/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
		"date":    version.Date,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	messages := s.alerts.Drain()
	if messages == nil {
		messages = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"alerts": messages})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-15 * time.Minute)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		since = parsed
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": logx.RecentEntries(since)})
}

func (s *Server) handleGetProject(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.state.Current())
}

func (s *Server) handlePatchProject(w http.ResponseWriter, r *http.Request) {
	var patch project.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid patch body")
		return
	}
	s.state.UpdateProject(patch)
	s.writeJSON(w, http.StatusOK, s.state.Current())
}

func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	saved := s.state.SaveProject(r.Context(), nil)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"saved":   saved,
		"project": s.state.Current(),
	})
}

func (s *Server) handleNewProject(w http.ResponseWriter, r *http.Request) {
	s.state.CreateNewProject(r.Context())
	s.writeJSON(w, http.StatusOK, s.state.Current())
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.state.FetchProjects(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "failed to fetch projects")
		return
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleLoadProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.state.LoadProject(r.Context(), id); err != nil {
		s.writeError(w, http.StatusNotFound, "project not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.state.Current())
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	s.state.DeleteProject(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSprint(w http.ResponseWriter, r *http.Request) {
	var patch sprint.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sprint body")
		return
	}
	created := s.sprints.Add(patch)
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateSprint(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sprint id")
		return
	}
	var patch sprint.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sprint body")
		return
	}
	s.sprints.Update(id, patch)
	s.writeJSON(w, http.StatusOK, s.state.Current())
}

func (s *Server) handleDeleteSprint(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sprint id")
		return
	}
	s.sprints.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshotBurn(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sprint id")
		return
	}
	var body struct {
		Day string `json:"day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Day == "" {
		s.writeError(w, http.StatusBadRequest, "day is required")
		return
	}
	s.sprints.SnapshotBurn(id, body.Day)
	s.writeJSON(w, http.StatusOK, s.state.Current())
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, _ *http.Request) {
	current := s.state.Current()

	teamSize := 0
	for _, role := range current.Team {
		teamSize += role.Count
	}

	total := calc.TotalHours(current.Estimates)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"totalHours":    total,
		"teamSize":      teamSize,
		"sprintsNeeded": calc.SprintsNeeded(total, teamSize, s.cfg.Planning.HoursPerDay, s.cfg.Planning.SprintWorkDays),
	})
}

func (s *Server) handleSprintCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sprint id")
		return
	}
	current := s.state.Current()
	for i := range current.Sprints {
		sp := &current.Sprints[i]
		if sp.ID != id {
			continue
		}
		sp.Capacity.Recompute()
		s.writeJSON(w, http.StatusOK, map[string]any{
			"capacityHours":  sp.Capacity.Total,
			"plannedHours":   calc.TaskHours(sp.Tasks),
			"remainingHours": calc.RemainingHours(sp.Tasks),
			"completedHours": calc.CompletedHours(sp.Tasks),
			"overCapacity":   calc.OverCapacity(sp),
			"velocity":       calc.Velocity(sp),
			"performancePct": calc.PerformancePct(sp),
			"capacityPct":    calc.CapacityPct(sp),
		})
		return
	}
	s.writeError(w, http.StatusNotFound, "sprint not found")
}

func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phase string `json:"phase"`
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid assist body")
		return
	}
	suggestion := s.suggester.Suggest(body.Phase, body.Input)
	if suggestion == "" {
		s.writeError(w, http.StatusNotFound, "unknown phase")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"suggestion": suggestion})
}

func (s *Server) handleStandup(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.standupStatus())
}

func (s *Server) handleStandupAction(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("action") {
	case "start":
		s.timer.Start()
	case "pause":
		s.timer.Pause()
	case "reset":
		s.timer.Reset()
	default:
		s.writeError(w, http.StatusBadRequest, "unknown standup action")
		return
	}
	s.writeJSON(w, http.StatusOK, s.standupStatus())
}

func (s *Server) standupStatus() map[string]any {
	return map[string]any{
		"remainingSeconds": int(s.timer.Remaining().Seconds()),
		"running":          s.timer.Running(),
		"expired":          s.timer.Expired(),
	}
}
