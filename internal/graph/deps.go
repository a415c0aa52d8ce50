package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskgraph/internal/log"
	"github.com/zulandar/taskgraph/internal/models"
	"github.com/zulandar/taskgraph/internal/task"
	"gorm.io/gorm"
)

// Manager performs validated mutations and queries on dependency edges.
type Manager struct {
	db     *gorm.DB
	policy Policy
	log    *logrus.Entry
}

// NewManager returns a Manager backed by db.
func NewManager(db *gorm.DB, policy Policy) *Manager {
	return &Manager{
		db:     db,
		policy: policy,
		log:    log.GetLogger().WithField("component", "dependency-manager"),
	}
}

// Policy returns the satisfaction policy the manager evaluates with.
func (m *Manager) Policy() Policy { return m.policy }

// CreateOpts holds parameters for a new dependency.
type CreateOpts struct {
	DependentID    string
	PrerequisiteID string
	Type           models.DependencyType // defaults to finish_to_start
	LagHours       *int
	Notes          string
}

// UpdateOpts holds the mutable fields of a dependency. Nil fields are left alone.
type UpdateOpts struct {
	Type     *models.DependencyType
	LagHours *int
	Notes    *string
}

// CreateDependency validates and inserts a new edge. Every check runs in the
// same transaction as the insert, so a rejected edge leaves nothing behind.
func (m *Manager) CreateDependency(ctx context.Context, opts CreateOpts) (*models.TaskDependency, error) {
	if opts.Type == "" {
		opts.Type = models.FinishToStart
	}
	if !opts.Type.Valid() {
		return nil, &ValidationError{
			Kind: InvalidDependency, DependentID: opts.DependentID, PrerequisiteID: opts.PrerequisiteID,
			Msg: fmt.Sprintf("unknown dependency type %q", opts.Type),
		}
	}
	if opts.DependentID == opts.PrerequisiteID {
		return nil, &ValidationError{
			Kind: InvalidDependency, DependentID: opts.DependentID, PrerequisiteID: opts.PrerequisiteID,
			Msg: "a task cannot depend on itself",
		}
	}

	var dep models.TaskDependency
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependent, err := loadTask(tx, opts.DependentID)
		if err != nil {
			return err
		}
		prereq, err := loadTask(tx, opts.PrerequisiteID)
		if err != nil {
			return err
		}
		if dependent.ProjectID != prereq.ProjectID {
			return &ValidationError{
				Kind: CrossProjectDependency, DependentID: dependent.ID, PrerequisiteID: prereq.ID,
				Msg: fmt.Sprintf("tasks belong to different projects %s and %s", prereq.ProjectID, dependent.ProjectID),
			}
		}

		// The version bump is the first write so that concurrent mutations of
		// one project serialize on the project row before validating.
		if err := task.BumpGraphVersion(tx, dependent.ProjectID); err != nil {
			return err
		}

		dup, err := activeEdgeExists(tx, dependent.ID, prereq.ID)
		if err != nil {
			return err
		}
		if dup {
			return &ValidationError{
				Kind: DuplicateDependency, DependentID: dependent.ID, PrerequisiteID: prereq.ID,
				Msg: "an active dependency already exists",
			}
		}

		s, err := LoadSnapshot(tx, dependent.ProjectID)
		if err != nil {
			return err
		}
		if s.WouldCreateCycle(dependent.ID, prereq.ID) {
			return &CyclicDependencyError{
				DependentID:    dependent.ID,
				PrerequisiteID: prereq.ID,
				Path:           s.ShortestPath(dependent.ID, prereq.ID),
			}
		}

		dep = models.TaskDependency{
			ID:             uuid.NewString(),
			DependentID:    dependent.ID,
			PrerequisiteID: prereq.ID,
			ProjectID:      dependent.ProjectID,
			Type:           opts.Type,
			Active:         true,
			Notes:          opts.Notes,
		}
		if opts.LagHours != nil {
			dep.LagHours = *opts.LagHours
		}
		if err := tx.Create(&dep).Error; err != nil {
			return fmt.Errorf("dep: create %s -> %s: %w", prereq.ID, dependent.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"project":      dep.ProjectID,
		"dependency":   dep.ID,
		"dependent":    dep.DependentID,
		"prerequisite": dep.PrerequisiteID,
		"type":         dep.Type,
	}).Info("dependency created")
	return &dep, nil
}

// UpdateDependency changes the type, lag or notes of an edge. Endpoints are
// immutable.
func (m *Manager) UpdateDependency(ctx context.Context, id string, opts UpdateOpts) (*models.TaskDependency, error) {
	updates := map[string]interface{}{}
	if opts.Type != nil {
		if !opts.Type.Valid() {
			return nil, &ValidationError{Kind: InvalidDependency, Msg: fmt.Sprintf("unknown dependency type %q", *opts.Type)}
		}
		updates["type"] = *opts.Type
	}
	if opts.LagHours != nil {
		updates["lag_hours"] = *opts.LagHours
	}
	if opts.Notes != nil {
		updates["notes"] = *opts.Notes
	}

	var dep models.TaskDependency
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadDependency(tx, id)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := task.BumpGraphVersion(tx, current.ProjectID); err != nil {
				return err
			}
			if err := tx.Model(&models.TaskDependency{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("dep: update %s: %w", id, err)
			}
		}
		return tx.Where("id = ?", id).First(&dep).Error
	})
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		m.log.WithFields(logrus.Fields{"project": dep.ProjectID, "dependency": dep.ID}).Info("dependency updated")
	}
	return &dep, nil
}

// RemoveDependency permanently deletes an edge. It reports false, without
// error, when no such edge exists.
func (m *Manager) RemoveDependency(ctx context.Context, id string) (bool, error) {
	return m.remove(ctx, "id = ?", id)
}

// RemoveDependencyBetween permanently deletes the edges joining the pair.
func (m *Manager) RemoveDependencyBetween(ctx context.Context, dependentID, prerequisiteID string) (bool, error) {
	return m.remove(ctx, "dependent_id = ? AND prerequisite_id = ?", dependentID, prerequisiteID)
}

func (m *Manager) remove(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var removed []models.TaskDependency
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(query, args...).Find(&removed).Error; err != nil {
			return fmt.Errorf("dep: find for removal: %w", err)
		}
		if len(removed) == 0 {
			return nil
		}
		if err := bumpProjects(tx, removed); err != nil {
			return err
		}
		ids := edgeIDs(removed)
		if err := tx.Where("id IN ?", ids).Delete(&models.TaskDependency{}).Error; err != nil {
			return fmt.Errorf("dep: remove: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	for _, d := range removed {
		m.log.WithFields(logrus.Fields{
			"project":      d.ProjectID,
			"dependency":   d.ID,
			"dependent":    d.DependentID,
			"prerequisite": d.PrerequisiteID,
		}).Info("dependency removed")
	}
	return len(removed) > 0, nil
}

// GetDependency returns a dependency by ID.
func (m *Manager) GetDependency(ctx context.Context, id string) (*models.TaskDependency, error) {
	return loadDependency(m.db.WithContext(ctx), id)
}

// ListProjectDependencies returns a project's dependencies ordered by
// creation. With activeOnly set, deactivated edges are left out.
func (m *Manager) ListProjectDependencies(ctx context.Context, projectID string, activeOnly bool) ([]models.TaskDependency, error) {
	q := m.db.WithContext(ctx).Where("project_id = ?", projectID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var deps []models.TaskDependency
	if err := q.Order("created_at ASC, id ASC").Find(&deps).Error; err != nil {
		return nil, fmt.Errorf("dep: list %s: %w", projectID, err)
	}
	return deps, nil
}

// DirectPrerequisites returns the active edges taskID depends on.
func (m *Manager) DirectPrerequisites(ctx context.Context, taskID string) ([]models.TaskDependency, error) {
	var deps []models.TaskDependency
	if err := m.db.WithContext(ctx).Where("dependent_id = ? AND active = ?", taskID, true).
		Order("prerequisite_id ASC").Find(&deps).Error; err != nil {
		return nil, fmt.Errorf("dep: list prerequisites of %s: %w", taskID, err)
	}
	return deps, nil
}

// DirectDependents returns the active edges that depend on taskID.
func (m *Manager) DirectDependents(ctx context.Context, taskID string) ([]models.TaskDependency, error) {
	var deps []models.TaskDependency
	if err := m.db.WithContext(ctx).Where("prerequisite_id = ? AND active = ?", taskID, true).
		Order("dependent_id ASC").Find(&deps).Error; err != nil {
		return nil, fmt.Errorf("dep: list dependents of %s: %w", taskID, err)
	}
	return deps, nil
}

// DeactivateDependencies soft-deletes every active edge touching taskID and
// returns how many were deactivated.
func (m *Manager) DeactivateDependencies(ctx context.Context, taskID string) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := loadTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := task.BumpGraphVersion(tx, t.ProjectID); err != nil {
			return err
		}
		result := tx.Model(&models.TaskDependency{}).
			Where("(dependent_id = ? OR prerequisite_id = ?) AND active = ?", taskID, taskID, true).
			Updates(map[string]interface{}{"active": false, "critical_path": false})
		if result.Error != nil {
			return fmt.Errorf("dep: deactivate edges of %s: %w", taskID, result.Error)
		}
		n = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.log.WithFields(logrus.Fields{"task": taskID, "count": n}).Info("dependencies deactivated")
	return n, nil
}

// ReactivateDependencies restores the inactive edges touching taskID, in
// creation order. An edge is skipped when restoring it would duplicate an
// active edge or close a cycle. It returns the number restored.
func (m *Manager) ReactivateDependencies(ctx context.Context, taskID string) (int, error) {
	restored := 0
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := loadTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := task.BumpGraphVersion(tx, t.ProjectID); err != nil {
			return err
		}
		var inactive []models.TaskDependency
		if err := tx.Where("(dependent_id = ? OR prerequisite_id = ?) AND active = ?", taskID, taskID, false).
			Order("created_at ASC, id ASC").Find(&inactive).Error; err != nil {
			return fmt.Errorf("dep: list inactive edges of %s: %w", taskID, err)
		}
		for _, d := range inactive {
			dup, err := activeEdgeExists(tx, d.DependentID, d.PrerequisiteID)
			if err != nil {
				return err
			}
			if dup {
				m.log.WithField("dependency", d.ID).Warn("skipping reactivation: duplicate edge")
				continue
			}
			s, err := LoadSnapshot(tx, d.ProjectID)
			if err != nil {
				return err
			}
			if s.WouldCreateCycle(d.DependentID, d.PrerequisiteID) {
				m.log.WithField("dependency", d.ID).Warn("skipping reactivation: would create a cycle")
				continue
			}
			if err := tx.Model(&models.TaskDependency{}).Where("id = ?", d.ID).Update("active", true).Error; err != nil {
				return fmt.Errorf("dep: reactivate %s: %w", d.ID, err)
			}
			restored++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.log.WithFields(logrus.Fields{"task": taskID, "count": restored}).Info("dependencies reactivated")
	return restored, nil
}

// RemoveAllDependencies permanently deletes every edge touching taskID,
// active or not, and returns how many were removed.
func (m *Manager) RemoveAllDependencies(ctx context.Context, taskID string) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := loadTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := task.BumpGraphVersion(tx, t.ProjectID); err != nil {
			return err
		}
		result := tx.Where("dependent_id = ? OR prerequisite_id = ?", taskID, taskID).Delete(&models.TaskDependency{})
		if result.Error != nil {
			return fmt.Errorf("dep: remove edges of %s: %w", taskID, result.Error)
		}
		n = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.log.WithFields(logrus.Fields{"task": taskID, "count": n}).Info("dependencies removed")
	return n, nil
}

// DependencyStatistics counts a project's active edges per type. Every known
// type is present in the result.
func (m *Manager) DependencyStatistics(ctx context.Context, projectID string) (map[models.DependencyType]int64, error) {
	var rows []struct {
		Type  models.DependencyType
		Count int64
	}
	if err := m.db.WithContext(ctx).Model(&models.TaskDependency{}).
		Select("type, COUNT(*) AS count").
		Where("project_id = ? AND active = ?", projectID, true).
		Group("type").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("dep: statistics of %s: %w", projectID, err)
	}
	stats := make(map[models.DependencyType]int64, len(models.DependencyTypes))
	for _, t := range models.DependencyTypes {
		stats[t] = 0
	}
	for _, r := range rows {
		stats[r.Type] = r.Count
	}
	return stats, nil
}

// Snapshot loads a consistent view of a project's graph.
func (m *Manager) Snapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	var s *Snapshot
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := task.GetProject(tx, projectID); err != nil {
			if errors.Is(err, task.ErrNotFound) {
				return &NotFoundError{Entity: "project", ID: projectID}
			}
			return err
		}
		var err error
		s, err = LoadSnapshot(tx, projectID)
		return err
	})
	return s, err
}

// taskSnapshot loads the project snapshot containing taskID.
func (m *Manager) taskSnapshot(ctx context.Context, taskID string) (*Snapshot, error) {
	t, err := loadTask(m.db.WithContext(ctx), taskID)
	if err != nil {
		return nil, err
	}
	return m.Snapshot(ctx, t.ProjectID)
}

func loadTask(db *gorm.DB, id string) (*models.Task, error) {
	t, err := task.Get(db, id)
	if errors.Is(err, task.ErrNotFound) {
		return nil, &NotFoundError{Entity: "task", ID: id}
	}
	return t, err
}

func loadDependency(db *gorm.DB, id string) (*models.TaskDependency, error) {
	var d models.TaskDependency
	if err := db.Where("id = ?", id).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "dependency", ID: id}
		}
		return nil, fmt.Errorf("dep: get %s: %w", id, err)
	}
	return &d, nil
}

func activeEdgeExists(db *gorm.DB, dependentID, prerequisiteID string) (bool, error) {
	var count int64
	if err := db.Model(&models.TaskDependency{}).
		Where("dependent_id = ? AND prerequisite_id = ? AND active = ?", dependentID, prerequisiteID, true).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("dep: check %s -> %s: %w", prerequisiteID, dependentID, err)
	}
	return count > 0, nil
}

// bumpProjects bumps the graph version of every project owning one of deps.
func bumpProjects(tx *gorm.DB, deps []models.TaskDependency) error {
	seen := map[string]bool{}
	for _, d := range deps {
		if seen[d.ProjectID] {
			continue
		}
		seen[d.ProjectID] = true
		if err := task.BumpGraphVersion(tx, d.ProjectID); err != nil {
			return err
		}
	}
	return nil
}

func edgeIDs(deps []models.TaskDependency) []string {
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.ID
	}
	return ids
}
