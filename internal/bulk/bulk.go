// Package bulk applies dependency mutations in batches. Each item goes
// through the dependency manager on its own; a failing item is logged and
// skipped rather than aborting the batch.
package bulk

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskgraph/internal/graph"
	"github.com/zulandar/taskgraph/internal/log"
	"github.com/zulandar/taskgraph/internal/models"
)

// Facade runs best-effort batches over a dependency manager.
type Facade struct {
	deps *graph.Manager
	log  *logrus.Entry
}

// New returns a Facade over m.
func New(m *graph.Manager) *Facade {
	return &Facade{deps: m, log: log.GetLogger().WithField("component", "bulk")}
}

// CreateBulkDependencies creates each spec independently and returns the
// records that were created, in input order.
func (f *Facade) CreateBulkDependencies(ctx context.Context, specs []graph.CreateOpts) []models.TaskDependency {
	created := make([]models.TaskDependency, 0, len(specs))
	for i, spec := range specs {
		if ctx.Err() != nil {
			f.log.WithField("remaining", len(specs)-i).Warn("bulk create cancelled")
			break
		}
		d, err := f.deps.CreateDependency(ctx, spec)
		if err != nil {
			f.log.WithError(err).WithFields(logrus.Fields{
				"index":        i,
				"dependent":    spec.DependentID,
				"prerequisite": spec.PrerequisiteID,
			}).Warn("skipping dependency")
			continue
		}
		created = append(created, *d)
	}
	return created
}

// UpdateDependencyTypes sets the type of every listed dependency and returns
// how many were updated.
func (f *Facade) UpdateDependencyTypes(ctx context.Context, ids []string, t models.DependencyType) int {
	n := 0
	for _, id := range ids {
		if _, err := f.deps.UpdateDependency(ctx, id, graph.UpdateOpts{Type: &t}); err != nil {
			f.log.WithError(err).WithField("dependency", id).Warn("skipping type update")
			continue
		}
		n++
	}
	return n
}

// RemoveBulkDependencies deletes every listed dependency and returns how
// many existed and were removed.
func (f *Facade) RemoveBulkDependencies(ctx context.Context, ids []string) int {
	n := 0
	for _, id := range ids {
		ok, err := f.deps.RemoveDependency(ctx, id)
		if err != nil {
			f.log.WithError(err).WithField("dependency", id).Warn("skipping removal")
			continue
		}
		if ok {
			n++
		}
	}
	return n
}
