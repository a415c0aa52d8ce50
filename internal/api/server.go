package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/taskgraph/internal/log"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Services *Services
	Port     int
	// RecomputeSchedule is an optional cron spec for refreshing the
	// critical-path markers of every project.
	RecomputeSchedule string
	Out               io.Writer
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc *Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, svc)
	return router
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Services == nil || opts.Services.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts.Services)

	if opts.RecomputeSchedule != "" {
		sched, err := startRecompute(ctx, opts.RecomputeSchedule, opts.Services.Critical)
		if err != nil {
			return fmt.Errorf("api: %w", err)
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d/api\n", opts.Port)
	}
	log.GetLogger().WithField("port", opts.Port).Info("api server started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
