// Package calc provides the derived-metrics calculators: total estimated
// effort, sprint-count projection, capacity checks and burn series snapshots.
// Everything here is pure and stateless; callers recompute on demand.
package calc

import (
	"math"

	"agileforge/pkg/project"
)

// Default planning parameters.
const (
	DefaultHoursPerDay    = 6.0
	DefaultSprintWorkDays = 10.0
)

// TotalHours sums the numeric values in an estimates map. Missing entries
// count as 0 and negative entries are ignored, so the result is never
// negative.
func TotalHours(estimates map[string]float64) float64 {
	var total float64
	for _, hours := range estimates {
		if hours > 0 {
			total += hours
		}
	}
	return total
}

// SprintsNeeded projects how many sprints the estimated effort requires given
// team size and per-sprint capacity. Returns 0 when totalHours or teamSize is
// zero rather than dividing by zero.
func SprintsNeeded(totalHours float64, teamSize int, hoursPerDay, sprintWorkDays float64) int {
	if totalHours <= 0 || teamSize <= 0 {
		return 0
	}
	if hoursPerDay <= 0 {
		hoursPerDay = DefaultHoursPerDay
	}
	if sprintWorkDays <= 0 {
		sprintWorkDays = DefaultSprintWorkDays
	}

	capacity := float64(teamSize) * hoursPerDay * sprintWorkDays
	return int(math.Ceil(totalHours / capacity))
}

// TaskHours sums the estimated hours of a sprint's tasks.
func TaskHours(tasks []project.Task) float64 {
	var total float64
	for i := range tasks {
		if tasks[i].Estimated > 0 {
			total += tasks[i].Estimated
		}
	}
	return total
}

// OverCapacity reports whether a sprint's planned task hours exceed its
// derived member capacity. The capacity total is recomputed from members, not
// read from the stored value.
func OverCapacity(s *project.Sprint) bool {
	capacity := s.Capacity.Recompute()
	return TaskHours(s.Tasks) > capacity
}

// RemainingHours sums estimates of tasks not yet done.
func RemainingHours(tasks []project.Task) float64 {
	var total float64
	for i := range tasks {
		if tasks[i].Status != project.TaskStatusDone && tasks[i].Estimated > 0 {
			total += tasks[i].Estimated
		}
	}
	return total
}

// CompletedHours sums estimates of done tasks.
func CompletedHours(tasks []project.Task) float64 {
	var total float64
	for i := range tasks {
		if tasks[i].Status == project.TaskStatusDone && tasks[i].Estimated > 0 {
			total += tasks[i].Estimated
		}
	}
	return total
}

// SnapshotBurn upserts the day's point into both burn series from the current
// task list. Called whenever a task's status changes; snapshotting more often
// is harmless since the day's point is replaced, not appended.
func SnapshotBurn(s *project.Sprint, day string) {
	point := project.BurnPoint{
		Day:       day,
		Remaining: RemainingHours(s.Tasks),
		Completed: CompletedHours(s.Tasks),
	}
	s.KPIs.Burndown = upsertPoint(s.KPIs.Burndown, point)
	s.KPIs.Burnup = upsertPoint(s.KPIs.Burnup, point)
}

func upsertPoint(series []project.BurnPoint, point project.BurnPoint) []project.BurnPoint {
	for i := range series {
		if series[i].Day == point.Day {
			series[i] = point
			return series
		}
	}
	return append(series, point)
}

// Velocity is the completed work of a sprint, used as the per-sprint KPI.
func Velocity(s *project.Sprint) float64 {
	return CompletedHours(s.Tasks)
}

// PerformancePct is completed work over planned work, as a percentage.
// Returns 0 for an unplanned sprint.
func PerformancePct(s *project.Sprint) float64 {
	planned := TaskHours(s.Tasks)
	if planned == 0 {
		return 0
	}
	return CompletedHours(s.Tasks) / planned * 100
}

// CapacityPct is planned work over derived capacity, as a percentage.
// Returns 0 when the sprint has no member capacity.
func CapacityPct(s *project.Sprint) float64 {
	capacity := s.Capacity.Recompute()
	if capacity == 0 {
		return 0
	}
	return TaskHours(s.Tasks) / capacity * 100
}
