package cpm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskgraph/internal/graph"
	"github.com/zulandar/taskgraph/internal/log"
	"github.com/zulandar/taskgraph/internal/models"
	"github.com/zulandar/taskgraph/internal/task"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Analyzer computes critical paths and rewrites the persisted markers.
type Analyzer struct {
	db    *gorm.DB
	opts  Options
	group singleflight.Group
	log   *logrus.Entry
}

// NewAnalyzer returns an Analyzer backed by db.
func NewAnalyzer(db *gorm.DB, opts Options) *Analyzer {
	return &Analyzer{
		db:   db,
		opts: opts.withDefaults(),
		log:  log.GetLogger().WithField("component", "critical-path"),
	}
}

// Compute calculates the critical path of a project and atomically replaces
// its critical-path markers. Concurrent calls that observe the same graph
// version share one computation; a call made after a mutation has committed
// sees a newer version and always computes afresh.
func (a *Analyzer) Compute(ctx context.Context, projectID string) (*Result, error) {
	version, err := a.version(ctx, projectID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%d", projectID, version)
	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		return a.compute(context.WithoutCancel(ctx), projectID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (a *Analyzer) compute(ctx context.Context, projectID string) (*Result, error) {
	start := time.Now()
	var r *Result
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version, err := task.GraphVersion(tx, projectID)
		if err != nil {
			return err
		}
		s, err := graph.LoadSnapshot(tx, projectID)
		if err != nil {
			return err
		}
		r = Calculate(s, a.opts)
		r.GraphVersion = version

		depIDs := make([]string, len(r.CriticalDependencies))
		for i, d := range r.CriticalDependencies {
			depIDs[i] = d.ID
		}
		if err := graph.ReplaceCriticalMarkers(tx, projectID, r.CriticalTasks, depIDs); err != nil {
			return err
		}

		critical, err := json.Marshal(r.CriticalTasks)
		if err != nil {
			return fmt.Errorf("cpm: encode critical tasks: %w", err)
		}
		floats, err := json.Marshal(r.Float)
		if err != nil {
			return fmt.Errorf("cpm: encode floats: %w", err)
		}
		run := models.CriticalPathRun{
			ProjectID:     projectID,
			GraphVersion:  version,
			TotalDuration: r.TotalDuration,
			CriticalTasks: datatypes.JSON(critical),
			Floats:        datatypes.JSON(floats),
		}
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("cpm: record run of %s: %w", projectID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := a.log.WithFields(logrus.Fields{
		"project":        projectID,
		"version":        r.GraphVersion,
		"tasks":          len(r.Order) + len(r.Omitted),
		"critical_tasks": len(r.CriticalTasks),
		"total_hours":    r.TotalDuration,
		"elapsed":        time.Since(start).String(),
	})
	if len(r.Omitted) > 0 {
		entry.WithField("omitted", len(r.Omitted)).Warn("critical path computed over a cyclic graph")
	} else {
		entry.Info("critical path computed")
	}
	return r, nil
}

// Calculate computes the critical path of a project without writing anything.
func (a *Analyzer) Calculate(ctx context.Context, projectID string) (*Result, error) {
	var r *Result
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version, err := task.GraphVersion(tx, projectID)
		if err != nil {
			return err
		}
		s, err := graph.LoadSnapshot(tx, projectID)
		if err != nil {
			return err
		}
		r = Calculate(s, a.opts)
		r.GraphVersion = version
		return nil
	})
	if err != nil {
		return nil, notFound(err, projectID)
	}
	return r, nil
}

// ComputeAll recomputes every project and returns how many succeeded. A
// failing project is logged and does not stop the others.
func (a *Analyzer) ComputeAll(ctx context.Context) (int, error) {
	projects, err := task.ListProjects(a.db.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	done := 0
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := a.Compute(ctx, p.ID); err != nil {
			a.log.WithError(err).WithField("project", p.ID).Error("critical path recompute failed")
			continue
		}
		done++
	}
	return done, nil
}

// LatestRun returns the most recent recorded run of a project, or nil when
// the project has never been computed.
func (a *Analyzer) LatestRun(ctx context.Context, projectID string) (*models.CriticalPathRun, error) {
	var run models.CriticalPathRun
	err := a.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cpm: latest run of %s: %w", projectID, err)
	}
	return &run, nil
}

// TaskFloat returns the total float of a task in hours. It reuses the latest
// run when it matches the current graph version and computes otherwise.
func (a *Analyzer) TaskFloat(ctx context.Context, taskID string) (float64, error) {
	t, err := task.Get(a.db.WithContext(ctx), taskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return 0, &graph.NotFoundError{Entity: "task", ID: taskID}
		}
		return 0, err
	}
	version, err := a.version(ctx, t.ProjectID)
	if err != nil {
		return 0, err
	}
	run, err := a.LatestRun(ctx, t.ProjectID)
	if err != nil {
		return 0, err
	}
	if run != nil && run.GraphVersion == version {
		floats := map[string]float64{}
		if err := json.Unmarshal(run.Floats, &floats); err != nil {
			return 0, fmt.Errorf("cpm: decode floats of run %d: %w", run.ID, err)
		}
		if f, ok := floats[taskID]; ok {
			return f, nil
		}
	}

	r, err := a.Compute(ctx, t.ProjectID)
	if err != nil {
		return 0, err
	}
	return r.Float[taskID], nil
}

// CriticalPathTasks returns the tasks currently marked critical, in the
// order of the latest run.
func (a *Analyzer) CriticalPathTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := a.db.WithContext(ctx).Where("project_id = ? AND critical_path = ?", projectID, true).
		Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("cpm: critical tasks of %s: %w", projectID, err)
	}
	run, err := a.LatestRun(ctx, projectID)
	if err != nil || run == nil {
		return tasks, err
	}
	var order []string
	if err := json.Unmarshal(run.CriticalTasks, &order); err != nil {
		return nil, fmt.Errorf("cpm: decode critical tasks of run %d: %w", run.ID, err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	sort.SliceStable(tasks, func(i, j int) bool { return pos[tasks[i].ID] < pos[tasks[j].ID] })
	return tasks, nil
}

// CriticalPathDependencies returns the active edges currently marked critical.
func (a *Analyzer) CriticalPathDependencies(ctx context.Context, projectID string) ([]models.TaskDependency, error) {
	var deps []models.TaskDependency
	if err := a.db.WithContext(ctx).Where("project_id = ? AND critical_path = ? AND active = ?", projectID, true, true).
		Order("id ASC").Find(&deps).Error; err != nil {
		return nil, fmt.Errorf("cpm: critical dependencies of %s: %w", projectID, err)
	}
	return deps, nil
}

func (a *Analyzer) version(ctx context.Context, projectID string) (int64, error) {
	v, err := task.GraphVersion(a.db.WithContext(ctx), projectID)
	return v, notFound(err, projectID)
}

func notFound(err error, projectID string) error {
	if errors.Is(err, task.ErrNotFound) {
		return &graph.NotFoundError{Entity: "project", ID: projectID}
	}
	return err
}
