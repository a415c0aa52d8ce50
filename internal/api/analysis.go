package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func handleTaskFloat(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("task")
		f, err := svc.Critical.TaskFloat(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task_id": id, "float_hours": f})
	}
}

func handleComputeCriticalPath(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := svc.Critical.Compute(c.Request.Context(), c.Param("project"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// handleCriticalPath returns the stored markers without recomputing.
func handleCriticalPath(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		projectID := c.Param("project")
		if _, err := svc.Graph.Snapshot(ctx, projectID); err != nil {
			abortWithError(c, err)
			return
		}
		tasks, err := svc.Critical.CriticalPathTasks(ctx, projectID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		deps, err := svc.Critical.CriticalPathDependencies(ctx, projectID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		run, err := svc.Critical.LatestRun(ctx, projectID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tasks":        tasks,
			"dependencies": deps,
			"run":          run,
		})
	}
}

func handleValidate(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := svc.Graph.ValidateDependencyGraph(c.Request.Context(), c.Param("project"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleRisk(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := svc.Risk.AssessProjectRisk(c.Request.Context(), c.Param("project"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func handleOptimize(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Risk.OptimizeSchedule(c.Request.Context(), c.Param("project"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func handleReady(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := svc.Risk.TasksReadyToStart(c.Request.Context(), c.Param("project"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func handleBlocked(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		blocked, err := svc.Risk.BlockedTasks(c.Request.Context(), c.Param("project"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, blocked)
	}
}

func handleMostConnected(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := intQuery(c, "limit", 10)
		if !ok {
			return
		}
		tasks, err := svc.Risk.MostConnectedTasks(c.Request.Context(), c.Param("project"), limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func handleStatistics(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		projectID := c.Param("project")
		if _, err := svc.Graph.Snapshot(ctx, projectID); err != nil {
			abortWithError(c, err)
			return
		}
		stats, err := svc.Graph.DependencyStatistics(ctx, projectID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleExternalConstraints(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		minLag, ok := intQuery(c, "min_lag", svc.Policy.ExternalConstraintLagHours)
		if !ok {
			return
		}
		deps, err := svc.Risk.ExternalConstraints(c.Request.Context(), c.Param("project"), minLag)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps)
	}
}

// intQuery parses a non-negative integer query parameter. It writes a 400
// and returns false when the value is malformed.
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		badRequest(c, fmt.Errorf("%s must be a non-negative integer", name))
		return 0, false
	}
	return n, true
}
