package models

import "time"

// Project scopes a set of tasks and the dependency graph between them.
type Project struct {
	ID           string    `gorm:"primaryKey;size:32" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	GraphVersion int64     `gorm:"not null;default:0" json:"graph_version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
