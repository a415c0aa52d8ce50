package api

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/taskgraph/internal/config"
	"github.com/zulandar/taskgraph/internal/cpm"
	"github.com/zulandar/taskgraph/internal/log"
)

// startRecompute runs a full marker refresh on the given cron schedule until
// ctx is done. Overlapping runs are skipped.
func startRecompute(ctx context.Context, spec string, a *cpm.Analyzer) (*cron.Cron, error) {
	logger := log.GetLogger().WithField("component", "recompute")
	c := cron.New(
		cron.WithParser(config.CronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		n, err := a.ComputeAll(ctx)
		if err != nil {
			logger.WithError(err).Warn("scheduled recompute interrupted")
			return
		}
		logger.WithField("projects", n).Info("scheduled recompute finished")
	})
	if err != nil {
		return nil, fmt.Errorf("recompute schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
