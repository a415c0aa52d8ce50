// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/zulandar/taskgraph/internal/db"
	"github.com/zulandar/taskgraph/internal/models"
	"gorm.io/gorm"
)

// OpenTestDB opens a private in-memory SQLite database with every table
// migrated. Each test gets its own named database.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gormDB
}

// SeedProject inserts a project row.
func SeedProject(t *testing.T, gormDB *gorm.DB, id string) *models.Project {
	t.Helper()
	p := &models.Project{ID: id, Name: "Project " + id}
	if err := gormDB.Create(p).Error; err != nil {
		t.Fatalf("seed project %s: %v", id, err)
	}
	return p
}

// SeedTask inserts a task with the given estimate in hours. A negative
// estimate leaves the task without one.
func SeedTask(t *testing.T, gormDB *gorm.DB, projectID, id string, hours float64) *models.Task {
	t.Helper()
	tk := &models.Task{ID: id, ProjectID: projectID, Title: "Task " + id}
	if hours >= 0 {
		h := hours
		tk.EstimatedHours = &h
	}
	if err := gormDB.Create(tk).Error; err != nil {
		t.Fatalf("seed task %s: %v", id, err)
	}
	return tk
}

// SeedEdge inserts an active dependency row directly, bypassing validation.
// Tests use it to build graphs the manager would refuse, such as cycles.
func SeedEdge(t *testing.T, gormDB *gorm.DB, projectID, id, dependent, prerequisite string, lag int) *models.TaskDependency {
	t.Helper()
	d := &models.TaskDependency{
		ID:             id,
		DependentID:    dependent,
		PrerequisiteID: prerequisite,
		ProjectID:      projectID,
		Type:           models.FinishToStart,
		LagHours:       lag,
		Active:         true,
	}
	if err := gormDB.Create(d).Error; err != nil {
		t.Fatalf("seed edge %s: %v", id, err)
	}
	return d
}
