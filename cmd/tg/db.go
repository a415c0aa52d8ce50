package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskgraph/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the taskgraph database",
		Long:  "Connects to the configured database and migrates all tables.",
		RunE:  runDBInit,
	}
}

func runDBInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(cmd)
	if err != nil {
		return err
	}
	switch cfg.Database.Driver {
	case "mysql":
		fmt.Fprintf(out, "Connected to MySQL at %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	default:
		fmt.Fprintf(out, "Opened SQLite database %s\n", cfg.Database.Path)
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	fmt.Fprintln(out, "\ntaskgraph database initialized successfully.")
	return nil
}
