package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zulandar/taskgraph/internal/graph"
	"github.com/zulandar/taskgraph/internal/models"
	"github.com/zulandar/taskgraph/internal/task"
)

func newDepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage task dependencies",
	}

	cmd.AddCommand(newDepAddCmd())
	cmd.AddCommand(newDepUpdateCmd())
	cmd.AddCommand(newDepRemoveCmd())
	cmd.AddCommand(newDepListCmd())
	cmd.AddCommand(newDepPathCmd())
	cmd.AddCommand(newDepDeactivateCmd())
	cmd.AddCommand(newDepReactivateCmd())
	return cmd
}

func typeHelp() string {
	names := make([]string, len(models.DependencyTypes))
	for i, t := range models.DependencyTypes {
		names[i] = string(t)
	}
	return "dependency type: " + strings.Join(names, ", ")
}

func newDepAddCmd() *cobra.Command {
	var (
		depType string
		lag     int
		notes   string
	)

	cmd := &cobra.Command{
		Use:   "add <dependent-id> <prerequisite-id>",
		Short: "Add a dependency",
		Long: `Makes the first task depend on the second. The dependency is rejected if
it would create a cycle, duplicate an active dependency or cross projects.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			opts := graph.CreateOpts{
				DependentID:    args[0],
				PrerequisiteID: args[1],
				Type:           models.DependencyType(depType),
				Notes:          notes,
			}
			if cmd.Flags().Changed("lag") {
				opts.LagHours = &lag
			}
			d, err := svc.Graph.CreateDependency(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, d, nil)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added dependency %s: %s -> %s (%s)\n",
				d.ID, d.PrerequisiteID, d.DependentID, d.Type.ShortCode())
			return nil
		},
	}

	cmd.Flags().StringVar(&depType, "type", string(models.FinishToStart), typeHelp())
	cmd.Flags().IntVar(&lag, "lag", 0, "lag in hours (negative for a lead)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newDepUpdateCmd() *cobra.Command {
	var (
		depType string
		lag     int
		notes   string
	)

	cmd := &cobra.Command{
		Use:   "update <dependency-id>",
		Short: "Update a dependency",
		Long:  "Changes the type, lag or notes of a dependency. Its endpoints cannot change.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			var opts graph.UpdateOpts
			if cmd.Flags().Changed("type") {
				t := models.DependencyType(depType)
				opts.Type = &t
			}
			if cmd.Flags().Changed("lag") {
				opts.LagHours = &lag
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			d, err := svc.Graph.UpdateDependency(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, d, nil)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated dependency %s: %s, lag %s\n", d.ID, d.Type.ShortCode(), lagLabel(d.LagHours))
			return nil
		},
	}

	cmd.Flags().StringVar(&depType, "type", "", typeHelp())
	cmd.Flags().IntVar(&lag, "lag", 0, "lag in hours (negative for a lead)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newDepRemoveCmd() *cobra.Command {
	var (
		dependent    string
		prerequisite string
		allOf        string
	)

	cmd := &cobra.Command{
		Use:   "remove [dependency-id]",
		Short: "Remove a dependency",
		Long: `Permanently deletes a dependency, selected by ID, by its two tasks
(--dependent and --prerequisite) or every dependency touching a task (--task).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case len(args) == 1:
				ok, err := svc.Graph.RemoveDependency(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return &graph.NotFoundError{Entity: "dependency", ID: args[0]}
				}
				fmt.Fprintf(out, "Removed dependency %s\n", args[0])
			case dependent != "" && prerequisite != "":
				ok, err := svc.Graph.RemoveDependencyBetween(ctx, dependent, prerequisite)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no dependency of %s on %s", dependent, prerequisite)
				}
				fmt.Fprintf(out, "Removed dependency: %s -> %s\n", prerequisite, dependent)
			case allOf != "":
				n, err := svc.Graph.RemoveAllDependencies(ctx, allOf)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d dependencies of %s\n", n, allOf)
			default:
				return fmt.Errorf("give a dependency ID, --dependent with --prerequisite, or --task")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dependent, "dependent", "", "dependent task ID")
	cmd.Flags().StringVar(&prerequisite, "prerequisite", "", "prerequisite task ID")
	cmd.Flags().StringVar(&allOf, "task", "", "remove every dependency touching this task")
	return cmd
}

func newDepListCmd() *cobra.Command {
	var (
		projectID string
		taskID    string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dependencies",
		Long:  "Lists the dependencies of a project (--project) or the direct prerequisites and dependents of a task (--task).",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var deps []models.TaskDependency
			switch {
			case taskID != "":
				if _, err := task.Get(svc.DB.WithContext(ctx), taskID); err != nil {
					return err
				}
				prereqs, err := svc.Graph.DirectPrerequisites(ctx, taskID)
				if err != nil {
					return err
				}
				dependents, err := svc.Graph.DirectDependents(ctx, taskID)
				if err != nil {
					return err
				}
				deps = append(prereqs, dependents...)
			case projectID != "":
				if _, err := svc.Graph.Snapshot(ctx, projectID); err != nil {
					return err
				}
				deps, err = svc.Graph.ListProjectDependencies(ctx, projectID, !all)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("--project or --task is required")
			}

			if len(deps) == 0 && !viper.GetBool("json") {
				fmt.Fprintln(cmd.OutOrStdout(), "No dependencies found.")
				return nil
			}
			return render(cmd, deps, func(t table.Writer) { dependencyRows(t, deps) })
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project ID")
	cmd.Flags().StringVar(&taskID, "task", "", "task ID")
	cmd.Flags().BoolVar(&all, "all", false, "include deactivated dependencies")
	return cmd
}

func newDepPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <from-task> <to-task>",
		Short: "Show the shortest dependency chain between two tasks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			path, err := svc.Graph.FindShortestDependencyPath(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, path, nil)
			}
			out := cmd.OutOrStdout()
			if len(path) == 0 {
				fmt.Fprintf(out, "No dependency path from %s to %s\n", args[0], args[1])
				return nil
			}
			ids := make([]string, len(path))
			for i, t := range path {
				ids[i] = t.ID
			}
			fmt.Fprintln(out, strings.Join(ids, " -> "))
			return nil
		},
	}
}

func newDepDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <task-id>",
		Short: "Deactivate every dependency touching a task",
		Long:  "Deactivated dependencies are kept but ignored by scheduling and analysis until reactivated.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			n, err := svc.Graph.DeactivateDependencies(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %d dependencies of %s\n", n, args[0])
			return nil
		},
	}
}

func newDepReactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reactivate <task-id>",
		Short: "Reactivate the dependencies of a task",
		Long:  "Dependencies that would now duplicate an active one or close a cycle stay inactive.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			n, err := svc.Graph.ReactivateDependencies(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reactivated %d dependencies of %s\n", n, args[0])
			return nil
		},
	}
}

func dependencyRows(t table.Writer, deps []models.TaskDependency) {
	t.AppendHeader(table.Row{"ID", "PREREQUISITE", "DEPENDENT", "TYPE", "LAG", "ACTIVE", "CRITICAL"})
	for _, d := range deps {
		t.AppendRow(table.Row{d.ID, d.PrerequisiteID, d.DependentID, d.Type.ShortCode(), lagLabel(d.LagHours), d.Active, d.CriticalPath})
	}
}
