package api

import (
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up every API route on the Gin router.
func registerRoutes(router *gin.Engine, svc *Services) {
	api := router.Group("/api")

	// Dependencies.
	api.GET("/projects/:project/dependencies", handleListDependencies(svc))
	api.POST("/projects/:project/dependencies", handleCreateDependency(svc))
	api.POST("/projects/:project/dependencies/bulk", handleBulkCreate(svc))
	api.PUT("/dependencies/:id", handleUpdateDependency(svc))
	api.DELETE("/dependencies/:id", handleRemoveDependency(svc))
	api.DELETE("/dependencies/bulk", handleBulkRemove(svc))
	api.PUT("/dependencies/bulk/type", handleBulkUpdateType(svc))

	// Per-task queries.
	api.GET("/tasks/:task/dependencies", handleTaskDependencies(svc))
	api.GET("/tasks/:task/float", handleTaskFloat(svc))
	api.GET("/tasks/:task/can-start", handleCanStart(svc))

	// Project analysis.
	api.POST("/projects/:project/critical-path", handleComputeCriticalPath(svc))
	api.GET("/projects/:project/critical-path", handleCriticalPath(svc))
	api.GET("/projects/:project/validate", handleValidate(svc))
	api.GET("/projects/:project/risk", handleRisk(svc))
	api.GET("/projects/:project/optimize", handleOptimize(svc))
	api.GET("/projects/:project/ready", handleReady(svc))
	api.GET("/projects/:project/blocked", handleBlocked(svc))
	api.GET("/projects/:project/most-connected", handleMostConnected(svc))
	api.GET("/projects/:project/statistics", handleStatistics(svc))
	api.GET("/projects/:project/external-constraints", handleExternalConstraints(svc))
}
