package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/taskgraph/internal/graph"
	"github.com/zulandar/taskgraph/internal/log"
	"github.com/zulandar/taskgraph/internal/models"
	"github.com/zulandar/taskgraph/internal/task"
)

type dependencyRequest struct {
	DependentID    string                `json:"dependent_id" binding:"required"`
	PrerequisiteID string                `json:"prerequisite_id" binding:"required"`
	Type           models.DependencyType `json:"type"`
	LagHours       *int                  `json:"lag_hours"`
	Notes          string                `json:"notes"`
}

func (r dependencyRequest) opts() graph.CreateOpts {
	return graph.CreateOpts{
		DependentID:    r.DependentID,
		PrerequisiteID: r.PrerequisiteID,
		Type:           r.Type,
		LagHours:       r.LagHours,
		Notes:          r.Notes,
	}
}

type updateRequest struct {
	Type     *models.DependencyType `json:"type"`
	LagHours *int                   `json:"lag_hours"`
	Notes    *string                `json:"notes"`
}

type idsRequest struct {
	IDs  []string              `json:"ids" binding:"required"`
	Type models.DependencyType `json:"type"`
}

func handleListDependencies(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := true
		if v := c.Query("active"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				badRequest(c, fmt.Errorf("active: %w", err))
				return
			}
			active = b
		}
		deps, err := svc.Graph.ListProjectDependencies(c.Request.Context(), c.Param("project"), active)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps)
	}
}

func handleCreateDependency(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dependencyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := checkProject(c, svc, c.Param("project"), req.DependentID); err != nil {
			abortWithError(c, err)
			return
		}
		d, err := svc.Graph.CreateDependency(c.Request.Context(), req.opts())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	}
}

func handleBulkCreate(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var reqs []dependencyRequest
		if err := c.ShouldBindJSON(&reqs); err != nil {
			badRequest(c, err)
			return
		}
		projectID := c.Param("project")
		specs := make([]graph.CreateOpts, 0, len(reqs))
		for _, r := range reqs {
			if err := checkProject(c, svc, projectID, r.DependentID); err != nil {
				log.GetLogger().WithError(err).WithField("project", projectID).Warn("bulk dependency skipped")
				continue
			}
			specs = append(specs, r.opts())
		}
		created := svc.Bulk.CreateBulkDependencies(c.Request.Context(), specs)
		c.JSON(http.StatusCreated, gin.H{
			"created":       created,
			"requested":     len(reqs),
			"created_count": len(created),
		})
	}
}

func handleUpdateDependency(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		d, err := svc.Graph.UpdateDependency(c.Request.Context(), c.Param("id"), graph.UpdateOpts{
			Type:     req.Type,
			LagHours: req.LagHours,
			Notes:    req.Notes,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func handleRemoveDependency(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ok, err := svc.Graph.RemoveDependency(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !ok {
			abortWithError(c, &graph.NotFoundError{Entity: "dependency", ID: id})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleBulkRemove(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req idsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		n := svc.Bulk.RemoveBulkDependencies(c.Request.Context(), req.IDs)
		c.JSON(http.StatusOK, gin.H{"removed": n})
	}
}

func handleBulkUpdateType(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req idsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if !req.Type.Valid() {
			badRequest(c, fmt.Errorf("unknown dependency type %q", req.Type))
			return
		}
		n := svc.Bulk.UpdateDependencyTypes(c.Request.Context(), req.IDs, req.Type)
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

func handleTaskDependencies(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("task")
		if _, err := task.Get(svc.DB.WithContext(ctx), id); err != nil {
			abortWithError(c, err)
			return
		}
		prereqs, err := svc.Graph.DirectPrerequisites(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		dependents, err := svc.Graph.DirectDependents(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"prerequisites": prereqs,
			"dependents":    dependents,
		})
	}
}

func handleCanStart(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("task")
		blocking, err := svc.Graph.BlockingDependencies(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"task_id":   id,
			"can_start": len(blocking) == 0,
			"blocking":  blocking,
		})
	}
}

// checkProject rejects a dependent task that lives outside projectID.
func checkProject(c *gin.Context, svc *Services, projectID, dependentID string) error {
	t, err := task.Get(svc.DB.WithContext(c.Request.Context()), dependentID)
	if err != nil {
		return err
	}
	if t.ProjectID != projectID {
		return &graph.ValidationError{
			Kind:        graph.CrossProjectDependency,
			DependentID: dependentID,
			Msg:         fmt.Sprintf("task %s does not belong to project %s", dependentID, projectID),
		}
	}
	return nil
}
