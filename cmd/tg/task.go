package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zulandar/taskgraph/internal/models"
	"github.com/zulandar/taskgraph/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		projectID string
		hours     float64
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Long:  "Creates a task in a project. Without --hours the task has no estimate and scheduling assumes the configured default.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			opts := task.CreateOpts{ProjectID: projectID, Title: strings.Join(args, " ")}
			if cmd.Flags().Changed("hours") {
				opts.EstimatedHours = &hours
			}
			t, err := task.Create(gormDB.WithContext(cmd.Context()), opts)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, t, nil)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s: %s\n", t.ID, t.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project ID (required)")
	cmd.Flags().Float64Var(&hours, "hours", 0, "estimated duration in hours")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			gormDB = gormDB.WithContext(cmd.Context())
			if _, err := task.GetProject(gormDB, projectID); err != nil {
				return err
			}
			tasks, err := task.ListByProject(gormDB, projectID)
			if err != nil {
				return err
			}
			if len(tasks) == 0 && !viper.GetBool("json") {
				fmt.Fprintf(cmd.OutOrStdout(), "No tasks in %s.\n", projectID)
				return nil
			}
			return render(cmd, tasks, func(t table.Writer) { taskRows(t, tasks) })
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project ID (required)")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		title         string
		hours         float64
		clearEstimate bool
		progress      int
		completed     bool
	)

	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update a task",
		Long:  "Changes the title, estimate, progress or completion of a task. Completing a task sets its progress to 100.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			var opts task.UpdateOpts
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("hours") {
				opts.EstimatedHours = &hours
			}
			opts.ClearEstimate = clearEstimate
			if cmd.Flags().Changed("progress") {
				opts.Progress = &progress
			}
			if cmd.Flags().Changed("completed") {
				opts.Completed = &completed
			}
			t, err := task.Update(gormDB.WithContext(cmd.Context()), args[0], opts)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, t, nil)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s (progress %d%%, completed %t)\n", t.ID, t.Progress, t.Completed)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().Float64Var(&hours, "hours", 0, "new estimated duration in hours")
	cmd.Flags().BoolVar(&clearEstimate, "clear-estimate", false, "remove the estimate")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress percentage (0-100)")
	cmd.Flags().BoolVar(&completed, "completed", false, "mark the task completed")
	return cmd
}

func taskRows(t table.Writer, tasks []models.Task) {
	t.AppendHeader(table.Row{"ID", "TITLE", "HOURS", "PROGRESS", "DONE", "CRITICAL"})
	for _, tk := range tasks {
		t.AppendRow(table.Row{tk.ID, truncate(tk.Title, 40), hoursLabel(tk.EstimatedHours), fmt.Sprintf("%d%%", tk.Progress), tk.Completed, tk.CriticalPath})
	}
}
