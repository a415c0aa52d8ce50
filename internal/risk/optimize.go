package risk

import (
	"context"
	"fmt"

	"github.com/zulandar/taskgraph/internal/cpm"
	"github.com/zulandar/taskgraph/internal/models"
)

// Optimization is advisory output of OptimizeSchedule.
type Optimization struct {
	Recommendations []string `json:"recommendations"`
	// SuggestedAdjustments maps a task ID to the hours it could start
	// earlier if the lag of its reviewed critical dependencies were removed.
	SuggestedAdjustments        map[string]float64 `json:"suggestedAdjustments"`
	PotentialTimeReductionHours float64            `json:"potentialTimeReductionHours"`
}

// OptimizeSchedule suggests ways to shorten a project. It only reads.
func (a *Analyzer) OptimizeSchedule(ctx context.Context, projectID string) (*Optimization, error) {
	s, err := a.graph.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := &Optimization{Recommendations: []string{}, SuggestedAdjustments: map[string]float64{}}

	critical := map[string]bool{}
	if cycles := s.DetectCycles(); len(cycles) > 0 {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Resolve %d circular dependencies before relying on the critical path", len(cycles)))
	} else {
		r := cpm.Calculate(s, a.opts)
		for _, d := range r.CriticalDependencies {
			critical[d.ID] = true
		}
	}

	independent := 0
	for _, t := range s.Tasks {
		if !t.Completed && s.Degree(t.ID) == 0 {
			independent++
		}
	}
	if independent > 0 {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Consider parallelizing %d independent tasks", independent))
	}

	softTasks := map[string]bool{}
	for _, e := range s.Edges {
		if !e.Type.Hard() {
			softTasks[e.DependentID] = true
		}
	}
	if len(softTasks) > 0 {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Review soft dependencies for %d tasks - these could potentially start earlier", len(softTasks)))
	}

	for _, e := range s.Edges {
		if e.LagHours <= a.th.ReviewLagHours {
			continue
		}
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Review lag time for dependency: %s -> %s (%dh)", title(s.Resolve, e.PrerequisiteID), title(s.Resolve, e.DependentID), e.LagHours))
		if critical[e.ID] {
			out.SuggestedAdjustments[e.DependentID] += float64(e.LagHours)
			out.PotentialTimeReductionHours += float64(e.LagHours)
		}
	}

	if procurement := externalConstraints(s, a.th.ProcurementLagHours); len(procurement) > 0 {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Start procurement/ordering early for %d external dependencies", len(procurement)))
	}
	return out, nil
}

func title(resolve func([]string) []models.Task, id string) string {
	t := resolve([]string{id})[0]
	if t.Title == "" {
		return t.ID
	}
	return t.Title
}
