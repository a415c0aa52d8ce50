package graph

import (
	"context"

	"github.com/zulandar/taskgraph/internal/models"
)

// GraphReport is a Report with cycles resolved to tasks.
type GraphReport struct {
	Valid  bool            `json:"valid"`
	Issues []string        `json:"issues"`
	Cycles [][]models.Task `json:"cycles"`
}

// Resolve maps task IDs to tasks. IDs outside the project resolve to the
// foreign task when known and to a bare placeholder otherwise.
func (s *Snapshot) Resolve(ids []string) []models.Task {
	out := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.Task(id); ok {
			out = append(out, *t)
		} else if ft, ok := s.Foreign[id]; ok {
			out = append(out, ft)
		} else {
			out = append(out, models.Task{ID: id})
		}
	}
	return out
}

// AllPrerequisites returns every task taskID transitively depends on.
func (m *Manager) AllPrerequisites(ctx context.Context, taskID string) ([]models.Task, error) {
	s, err := m.taskSnapshot(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.Resolve(s.AllPrerequisites(taskID)), nil
}

// AllDependents returns every task that transitively depends on taskID.
func (m *Manager) AllDependents(ctx context.Context, taskID string) ([]models.Task, error) {
	s, err := m.taskSnapshot(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.Resolve(s.AllDependents(taskID)), nil
}

// CanTaskStart reports whether all direct prerequisites of taskID are satisfied.
func (m *Manager) CanTaskStart(ctx context.Context, taskID string) (bool, error) {
	blocking, err := m.BlockingDependencies(ctx, taskID)
	if err != nil {
		return false, err
	}
	return len(blocking) == 0, nil
}

// BlockingDependencies returns the unsatisfied direct prerequisite edges of taskID.
func (m *Manager) BlockingDependencies(ctx context.Context, taskID string) ([]models.TaskDependency, error) {
	s, err := m.taskSnapshot(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.BlockingDependencies(taskID, m.policy), nil
}

// WouldCreateCycle reports whether making dependentID depend on
// prerequisiteID would close a cycle.
func (m *Manager) WouldCreateCycle(ctx context.Context, dependentID, prerequisiteID string) (bool, error) {
	s, err := m.taskSnapshot(ctx, dependentID)
	if err != nil {
		return false, err
	}
	return s.WouldCreateCycle(dependentID, prerequisiteID), nil
}

// DetectCycles returns every cycle among the project's active edges.
func (m *Manager) DetectCycles(ctx context.Context, projectID string) ([][]models.Task, error) {
	s, err := m.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return resolveCycles(s, s.DetectCycles()), nil
}

// FindShortestDependencyPath returns the shortest chain of tasks leading from
// one task to another along dependent edges, or an empty slice.
func (m *Manager) FindShortestDependencyPath(ctx context.Context, fromID, toID string) ([]models.Task, error) {
	s, err := m.taskSnapshot(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := loadTask(m.db.WithContext(ctx), toID); err != nil {
		return nil, err
	}
	return s.Resolve(s.ShortestPath(fromID, toID)), nil
}

// ValidateDependencyGraph reports every structural problem of the project graph.
func (m *Manager) ValidateDependencyGraph(ctx context.Context, projectID string) (*GraphReport, error) {
	s, err := m.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	r := s.Validate()
	return &GraphReport{Valid: r.Valid, Issues: r.Issues, Cycles: resolveCycles(s, r.Cycles)}, nil
}

func resolveCycles(s *Snapshot, cycles [][]string) [][]models.Task {
	out := make([][]models.Task, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, s.Resolve(c))
	}
	return out
}
