package models

import (
	"time"

	"gorm.io/datatypes"
)

// DependencyType classifies how a prerequisite constrains its dependent.
type DependencyType string

const (
	FinishToStart  DependencyType = "finish_to_start"
	StartToStart   DependencyType = "start_to_start"
	FinishToFinish DependencyType = "finish_to_finish"
	StartToFinish  DependencyType = "start_to_finish"
	Blocking       DependencyType = "blocking"
	Soft           DependencyType = "soft"
)

// DependencyTypes lists every known type in display order.
var DependencyTypes = []DependencyType{
	FinishToStart, StartToStart, FinishToFinish, StartToFinish, Blocking, Soft,
}

// Valid reports whether t is a known dependency type.
func (t DependencyType) Valid() bool {
	for _, k := range DependencyTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Hard reports whether the prerequisite must be complete before the
// dependency is satisfied. The remaining types are soft and are satisfied
// by progress on the prerequisite.
func (t DependencyType) Hard() bool {
	switch t {
	case FinishToStart, FinishToFinish, Blocking:
		return true
	}
	return false
}

// ShortCode returns the conventional scheduling abbreviation.
func (t DependencyType) ShortCode() string {
	switch t {
	case FinishToStart:
		return "FS"
	case StartToStart:
		return "SS"
	case FinishToFinish:
		return "FF"
	case StartToFinish:
		return "SF"
	case Blocking:
		return "BLK"
	case Soft:
		return "SOFT"
	}
	return string(t)
}

// TaskDependency is a directed edge: DependentID cannot proceed until
// PrerequisiteID satisfies the constraint described by Type.
type TaskDependency struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	DependentID    string         `gorm:"size:32;not null;index" json:"dependent_id"`
	PrerequisiteID string         `gorm:"size:32;not null;index" json:"prerequisite_id"`
	ProjectID      string         `gorm:"size:32;not null;index:idx_dep_project_active" json:"project_id"`
	Type           DependencyType `gorm:"size:24;not null;default:finish_to_start" json:"type"`
	LagHours       int            `gorm:"default:0" json:"lag_hours"`
	Active         bool           `gorm:"default:true;index:idx_dep_project_active" json:"active"`
	CriticalPath   bool           `gorm:"default:false;index" json:"critical_path"`
	Notes          string         `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CriticalPathRun records the outcome of the latest marking pass for a project.
type CriticalPathRun struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID     string         `gorm:"size:32;not null;index" json:"project_id"`
	GraphVersion  int64          `json:"graph_version"`
	TotalDuration float64        `json:"total_duration"`
	CriticalTasks datatypes.JSON `json:"critical_tasks"` // ordered task IDs
	Floats        datatypes.JSON `json:"floats"`         // task ID -> float hours
	CreatedAt     time.Time      `json:"created_at"`
}
