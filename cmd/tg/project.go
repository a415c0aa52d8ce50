package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zulandar/taskgraph/internal/task"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			p, err := task.CreateProject(gormDB.WithContext(cmd.Context()), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, p, nil)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.ID, p.Name)
			return nil
		},
	}
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			projects, err := task.ListProjects(gormDB.WithContext(cmd.Context()))
			if err != nil {
				return err
			}
			if len(projects) == 0 && !viper.GetBool("json") {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
				return nil
			}
			return render(cmd, projects, func(t table.Writer) {
				t.AppendHeader(table.Row{"ID", "NAME", "GRAPH VERSION", "CREATED"})
				for _, p := range projects {
					t.AppendRow(table.Row{p.ID, p.Name, p.GraphVersion, p.CreatedAt.Format("2006-01-02 15:04")})
				}
			})
		},
	}
}
