package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/taskgraph/internal/graph"
	"github.com/zulandar/taskgraph/internal/log"
	"github.com/zulandar/taskgraph/internal/task"
)

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrNotFound), errors.Is(err, task.ErrNotFound):
		return http.StatusNotFound
	case graph.IsKind(err, graph.DuplicateDependency):
		return http.StatusConflict
	case errors.Is(err, graph.ErrValidation), errors.Is(err, graph.ErrCyclic):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// abortWithError writes err as a JSON body. Internal errors are logged and
// replaced by a generic message.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.GetLogger().WithError(err).WithField("path", c.FullPath()).Error("request failed")
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
