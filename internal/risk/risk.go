// Package risk derives schedule risk and advisory optimizations from a
// project's dependency graph and critical path.
package risk

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskgraph/internal/cpm"
	"github.com/zulandar/taskgraph/internal/graph"
	"github.com/zulandar/taskgraph/internal/log"
	"github.com/zulandar/taskgraph/internal/models"
)

// Level grades the overall schedule risk of a project.
type Level string

const (
	Low      Level = "LOW"
	Medium   Level = "MEDIUM"
	High     Level = "HIGH"
	Critical Level = "CRITICAL"
)

// Thresholds holds the policy knobs of the analyzer.
type Thresholds struct {
	ExternalLagHours    int     // edges with at least this lag are external constraints
	ReviewLagHours      int     // edges with more lag are flagged for review
	ProcurementLagHours int     // edges with at least this lag call for early ordering
	BlockedRatio        float64 // blocked tasks per critical task that counts as a factor
}

// DefaultThresholds returns the stock policy.
func DefaultThresholds() Thresholds {
	return Thresholds{ExternalLagHours: 24, ReviewLagHours: 24, ProcurementLagHours: 48, BlockedRatio: 0.3}
}

// Analyzer reads the graph and runs side-effect-free critical-path
// calculations. It never writes.
type Analyzer struct {
	graph *graph.Manager
	opts  cpm.Options
	th    Thresholds
	log   *logrus.Entry
}

// NewAnalyzer returns an Analyzer over the graph behind m.
func NewAnalyzer(m *graph.Manager, opts cpm.Options, th Thresholds) *Analyzer {
	return &Analyzer{
		graph: m,
		opts:  opts,
		th:    th,
		log:   log.GetLogger().WithField("component", "risk"),
	}
}

// Metrics are the measurements behind an assessment.
type Metrics struct {
	CycleCount              int     `json:"cycleCount"`
	CriticalPathLength      int     `json:"criticalPathLength"`
	ProjectDuration         float64 `json:"projectDuration"`
	BlockedTaskCount        int     `json:"blockedTaskCount"`
	ExternalConstraintCount int     `json:"externalConstraintCount"`
}

// Assessment is the outcome of AssessProjectRisk.
type Assessment struct {
	Level         Level         `json:"level"`
	Factors       []string      `json:"factors"`
	HighRiskTasks []models.Task `json:"highRiskTasks"`
	Metrics       Metrics       `json:"metrics"`
}

// AssessProjectRisk grades a project. A cycle makes the project CRITICAL
// and the critical path is not computed. Otherwise each factor found raises
// the level: one makes it MEDIUM, three make it HIGH.
func (a *Analyzer) AssessProjectRisk(ctx context.Context, projectID string) (*Assessment, error) {
	s, err := a.graph.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}

	out := &Assessment{Factors: []string{}, HighRiskTasks: []models.Task{}}
	cycles := s.DetectCycles()
	out.Metrics.CycleCount = len(cycles)
	if len(cycles) > 0 {
		out.Factors = append(out.Factors, fmt.Sprintf("Circular dependencies detected (%d)", len(cycles)))
	} else {
		r := cpm.Calculate(s, a.opts)
		out.Metrics.CriticalPathLength = len(r.CriticalTasks)
		out.Metrics.ProjectDuration = r.TotalDuration
	}

	external := externalConstraints(s, a.th.ExternalLagHours)
	out.Metrics.ExternalConstraintCount = len(external)
	if len(external) > 0 {
		out.Factors = append(out.Factors, "External dependencies with significant lead times")
		seen := map[string]bool{}
		var ids []string
		for _, d := range external {
			if !seen[d.DependentID] {
				seen[d.DependentID] = true
				ids = append(ids, d.DependentID)
			}
		}
		sort.Strings(ids)
		out.HighRiskTasks = s.Resolve(ids)
	}

	blocked := blockedTasks(s, a.graph.Policy())
	out.Metrics.BlockedTaskCount = len(blocked)
	if float64(len(blocked)) > float64(out.Metrics.CriticalPathLength)*a.th.BlockedRatio {
		out.Factors = append(out.Factors, "High percentage of blocked tasks")
	}

	out.Level = grade(len(cycles) > 0, len(out.Factors))

	a.log.WithFields(logrus.Fields{
		"project": projectID,
		"level":   out.Level,
		"factors": len(out.Factors),
	}).Debug("risk assessed")
	return out, nil
}

// ExternalConstraints returns the active edges whose lag is at least
// minLagHours, ordered by ID.
func (a *Analyzer) ExternalConstraints(ctx context.Context, projectID string, minLagHours int) ([]models.TaskDependency, error) {
	s, err := a.graph.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return externalConstraints(s, minLagHours), nil
}

// TasksReadyToStart returns the incomplete tasks whose prerequisites are all
// satisfied.
func (a *Analyzer) TasksReadyToStart(ctx context.Context, projectID string) ([]models.Task, error) {
	s, err := a.graph.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ready := []models.Task{}
	for _, t := range s.Tasks {
		if !t.Completed && s.CanStart(t.ID, a.graph.Policy()) {
			ready = append(ready, t)
		}
	}
	return ready, nil
}

// Blocked pairs a task with the edges holding it back.
type Blocked struct {
	Task     models.Task             `json:"task"`
	Blocking []models.TaskDependency `json:"blocking"`
}

// BlockedTasks returns every incomplete task that cannot start, with its
// blocking dependencies, ordered by task ID.
func (a *Analyzer) BlockedTasks(ctx context.Context, projectID string) ([]Blocked, error) {
	s, err := a.graph.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return blockedTasks(s, a.graph.Policy()), nil
}

// MostConnectedTasks ranks tasks by the number of active edges touching them.
func (a *Analyzer) MostConnectedTasks(ctx context.Context, projectID string, limit int) ([]models.Task, error) {
	s, err := a.graph.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.Resolve(s.MostConnected(limit)), nil
}

func grade(cyclic bool, factors int) Level {
	switch {
	case cyclic:
		return Critical
	case factors >= 3:
		return High
	case factors >= 1:
		return Medium
	}
	return Low
}

func externalConstraints(s *graph.Snapshot, minLagHours int) []models.TaskDependency {
	out := []models.TaskDependency{}
	for _, e := range s.Edges {
		if e.LagHours >= minLagHours {
			out = append(out, e)
		}
	}
	return out
}

func blockedTasks(s *graph.Snapshot, p graph.Policy) []Blocked {
	out := []Blocked{}
	for _, t := range s.Tasks {
		if t.Completed {
			continue
		}
		if blocking := s.BlockingDependencies(t.ID, p); len(blocking) > 0 {
			out = append(out, Blocked{Task: t, Blocking: blocking})
		}
	}
	return out
}
