// Package task provides project and task lookup and maintenance.
package task

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/taskgraph/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned (wrapped) when a project or task id is unknown.
var ErrNotFound = errors.New("not found")

// CreateOpts holds parameters for creating a new task.
type CreateOpts struct {
	ProjectID      string
	Title          string
	EstimatedHours *float64
	StartDate      *time.Time
	EndDate        *time.Time
}

// UpdateOpts holds the task fields to change. Nil fields are left alone.
type UpdateOpts struct {
	Title          *string
	EstimatedHours *float64
	ClearEstimate  bool
	Progress       *int
	Completed      *bool
	StartDate      *time.Time
	EndDate        *time.Time
}

// GenerateID creates a unique id in prefix-xxxxxxxx format (8-char hex).
func GenerateID(prefix string) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("task: generate ID: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b), nil
}

// CreateProject creates a new project with an auto-generated ID.
func CreateProject(db *gorm.DB, name string) (*models.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("task: project name is required")
	}
	id, err := GenerateID("prj")
	if err != nil {
		return nil, err
	}
	p := models.Project{ID: id, Name: name}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("task: create project: %w", err)
	}
	return &p, nil
}

// GetProject retrieves a project by ID.
func GetProject(db *gorm.DB, id string) (*models.Project, error) {
	var p models.Project
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task: project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("task: get project %s: %w", id, err)
	}
	return &p, nil
}

// ListProjects returns all projects ordered by creation time.
func ListProjects(db *gorm.DB) ([]models.Project, error) {
	var projects []models.Project
	if err := db.Order("created_at ASC, id ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("task: list projects: %w", err)
	}
	return projects, nil
}

// Create creates a new task in an existing project.
func Create(db *gorm.DB, opts CreateOpts) (*models.Task, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("task: title is required")
	}
	if opts.EstimatedHours != nil && *opts.EstimatedHours < 0 {
		return nil, fmt.Errorf("task: estimated hours must not be negative")
	}

	var t models.Task
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := GetProject(tx, opts.ProjectID); err != nil {
			return err
		}
		id, err := GenerateID("tsk")
		if err != nil {
			return err
		}
		t = models.Task{
			ID:             id,
			ProjectID:      opts.ProjectID,
			Title:          opts.Title,
			EstimatedHours: opts.EstimatedHours,
			StartDate:      opts.StartDate,
			EndDate:        opts.EndDate,
		}
		if err := tx.Create(&t).Error; err != nil {
			return fmt.Errorf("task: create: %w", err)
		}
		return BumpGraphVersion(tx, opts.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Get retrieves a task by ID.
func Get(db *gorm.DB, id string) (*models.Task, error) {
	var t models.Task
	if err := db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task: task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("task: get %s: %w", id, err)
	}
	return &t, nil
}

// ListByProject returns the tasks of a project ordered by ID.
func ListByProject(db *gorm.DB, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := db.Where("project_id = ?", projectID).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list %s: %w", projectID, err)
	}
	return tasks, nil
}

// Update changes scheduling fields of a task. Completing a task forces its
// progress to 100.
func Update(db *gorm.DB, id string, opts UpdateOpts) (*models.Task, error) {
	updates := map[string]interface{}{}
	if opts.Title != nil {
		if *opts.Title == "" {
			return nil, fmt.Errorf("task: title must not be empty")
		}
		updates["title"] = *opts.Title
	}
	if opts.ClearEstimate {
		updates["estimated_hours"] = nil
	} else if opts.EstimatedHours != nil {
		if *opts.EstimatedHours < 0 {
			return nil, fmt.Errorf("task: estimated hours must not be negative")
		}
		updates["estimated_hours"] = *opts.EstimatedHours
	}
	if opts.Progress != nil {
		if *opts.Progress < 0 || *opts.Progress > 100 {
			return nil, fmt.Errorf("task: progress %d out of range 0-100", *opts.Progress)
		}
		updates["progress"] = *opts.Progress
	}
	if opts.Completed != nil {
		updates["completed"] = *opts.Completed
		if *opts.Completed {
			updates["progress"] = 100
		}
	}
	if opts.StartDate != nil {
		updates["start_date"] = *opts.StartDate
	}
	if opts.EndDate != nil {
		updates["end_date"] = *opts.EndDate
	}

	var t models.Task
	err := db.Transaction(func(tx *gorm.DB) error {
		current, err := Get(tx, id)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("task: update %s: %w", id, err)
			}
			if err := BumpGraphVersion(tx, current.ProjectID); err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).First(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// BumpGraphVersion increments a project's graph version. Callers run it in
// the same transaction as the mutation it accounts for.
func BumpGraphVersion(db *gorm.DB, projectID string) error {
	result := db.Model(&models.Project{}).Where("id = ?", projectID).
		UpdateColumn("graph_version", gorm.Expr("graph_version + 1"))
	if result.Error != nil {
		return fmt.Errorf("task: bump graph version of %s: %w", projectID, result.Error)
	}
	return nil
}

// GraphVersion returns the current graph version of a project.
func GraphVersion(db *gorm.DB, projectID string) (int64, error) {
	p, err := GetProject(db, projectID)
	if err != nil {
		return 0, err
	}
	return p.GraphVersion, nil
}
