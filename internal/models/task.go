package models

import "time"

// Task is a node in a project's dependency graph.
type Task struct {
	ID             string     `gorm:"primaryKey;size:32" json:"id"`
	ProjectID      string     `gorm:"size:32;not null;index" json:"project_id"`
	Title          string     `gorm:"not null" json:"title"`
	EstimatedHours *float64   `json:"estimated_hours"` // nil means no estimate
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Completed      bool       `gorm:"default:false" json:"completed"`
	Progress       int        `gorm:"default:0" json:"progress"`
	CriticalPath   bool       `gorm:"default:false;index" json:"critical_path"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
