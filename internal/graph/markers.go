package graph

import (
	"fmt"

	"github.com/zulandar/taskgraph/internal/models"
	"gorm.io/gorm"
)

// ReplaceCriticalMarkers clears the critical-path flag on every task and edge
// of the project, then sets it on the given ones. Call it inside a
// transaction so readers never see a partial marking.
func ReplaceCriticalMarkers(tx *gorm.DB, projectID string, taskIDs, depIDs []string) error {
	if err := tx.Model(&models.Task{}).
		Where("project_id = ? AND critical_path = ?", projectID, true).
		Update("critical_path", false).Error; err != nil {
		return fmt.Errorf("graph: clear task markers of %s: %w", projectID, err)
	}
	if err := tx.Model(&models.TaskDependency{}).
		Where("project_id = ? AND critical_path = ?", projectID, true).
		Update("critical_path", false).Error; err != nil {
		return fmt.Errorf("graph: clear dependency markers of %s: %w", projectID, err)
	}
	if len(taskIDs) > 0 {
		if err := tx.Model(&models.Task{}).
			Where("project_id = ? AND id IN ?", projectID, taskIDs).
			Update("critical_path", true).Error; err != nil {
			return fmt.Errorf("graph: mark tasks of %s: %w", projectID, err)
		}
	}
	if len(depIDs) > 0 {
		if err := tx.Model(&models.TaskDependency{}).
			Where("project_id = ? AND id IN ?", projectID, depIDs).
			Update("critical_path", true).Error; err != nil {
			return fmt.Errorf("graph: mark dependencies of %s: %w", projectID, err)
		}
	}
	return nil
}
