package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskgraph/internal/api"
	"github.com/zulandar/taskgraph/internal/db"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API server",
		Long: `Serves the dependency engine over HTTP under /api. When
server.recompute_schedule is set, critical-path markers of every project are
refreshed on that schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config, 8080)")
	return cmd
}

func runServe(cmd *cobra.Command, port int) error {
	cfg, svc, err := servicesFromConfig(cmd)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(svc.DB); err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return api.Start(ctx, api.StartOpts{
		Services:          svc,
		Port:              port,
		RecomputeSchedule: cfg.Server.RecomputeSchedule,
		Out:               cmd.OutOrStdout(),
	})
}
