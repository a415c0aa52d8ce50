package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zulandar/taskgraph/internal/cpm"
	"github.com/zulandar/taskgraph/internal/risk"
)

func newPathCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "path <project-id>",
		Short: "Compute the critical path of a project",
		Long: `Runs the forward and backward scheduling passes over the project's active
dependencies, marks the critical tasks and dependencies, and prints the schedule.
With --dry-run nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			var r *cpm.Result
			if dryRun {
				r, err = svc.Critical.Calculate(cmd.Context(), args[0])
			} else {
				r, err = svc.Critical.Compute(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, r, nil)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project %s (graph version %d): total duration %s\n",
				r.ProjectID, r.GraphVersion, formatHours(r.TotalDuration))
			if len(r.CriticalTasks) > 0 {
				fmt.Fprintf(out, "Critical path: %s\n", strings.Join(r.CriticalTasks, " -> "))
			}
			if len(r.Omitted) > 0 {
				fmt.Fprintf(out, "Not scheduled (cyclic): %s\n", strings.Join(r.Omitted, ", "))
			}
			return render(cmd, r, func(t table.Writer) {
				t.AppendHeader(table.Row{"TASK", "ES", "EF", "LS", "LF", "FLOAT", "CRITICAL"})
				for _, id := range r.Order {
					s := r.Schedule[id]
					t.AppendRow(table.Row{id,
						formatHours(s.EarliestStart), formatHours(s.EarliestFinish),
						formatHours(s.LatestStart), formatHours(s.LatestFinish),
						formatHours(r.Float[id]), r.IsCritical(id)})
				}
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "calculate without marking")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <project-id>",
		Short: "Check a project's dependency graph for structural problems",
		Long:  "Reports cycles, self-references, cross-project and dangling references, and duplicate active dependencies.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			r, err := svc.Graph.ValidateDependencyGraph(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, r, nil)
			}
			out := cmd.OutOrStdout()
			if r.Valid {
				fmt.Fprintf(out, "Dependency graph of %s is valid.\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "Dependency graph of %s has %d issue(s):\n", args[0], len(r.Issues))
			for _, issue := range r.Issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			for i, cycle := range r.Cycles {
				ids := make([]string, len(cycle))
				for j, t := range cycle {
					ids[j] = t.ID
				}
				fmt.Fprintf(out, "  cycle %d: %s -> %s\n", i+1, strings.Join(ids, " -> "), ids[0])
			}
			return nil
		},
	}
}

func newRiskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "risk <project-id>",
		Short: "Assess schedule risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			a, err := svc.Risk.AssessProjectRisk(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, a, nil)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Risk level: %s\n", a.Level)
			for _, f := range a.Factors {
				fmt.Fprintf(out, "  - %s\n", f)
			}
			if len(a.HighRiskTasks) > 0 {
				ids := make([]string, len(a.HighRiskTasks))
				for i, t := range a.HighRiskTasks {
					ids[i] = t.ID
				}
				fmt.Fprintf(out, "High-risk tasks: %s\n", strings.Join(ids, ", "))
			}
			m := a.Metrics
			return render(cmd, a, func(t table.Writer) {
				t.AppendHeader(table.Row{"METRIC", "VALUE"})
				t.AppendRows([]table.Row{
					{"cycles", m.CycleCount},
					{"critical path length", m.CriticalPathLength},
					{"project duration", formatHours(m.ProjectDuration)},
					{"blocked tasks", m.BlockedTaskCount},
					{"external constraints", m.ExternalConstraintCount},
				})
			})
		},
	}
}

func newOptimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize <project-id>",
		Short: "Suggest ways to shorten a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			o, err := svc.Risk.OptimizeSchedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return render(cmd, o, nil)
			}
			out := cmd.OutOrStdout()
			if len(o.Recommendations) == 0 {
				fmt.Fprintln(out, "No recommendations.")
				return nil
			}
			for _, rec := range o.Recommendations {
				fmt.Fprintf(out, "  - %s\n", rec)
			}
			if len(o.SuggestedAdjustments) == 0 {
				return nil
			}
			fmt.Fprintf(out, "Potential time reduction: %s\n", formatHours(o.PotentialTimeReductionHours))
			ids := make([]string, 0, len(o.SuggestedAdjustments))
			for id := range o.SuggestedAdjustments {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			return render(cmd, o, func(t table.Writer) {
				t.AppendHeader(table.Row{"TASK", "COULD START EARLIER BY"})
				for _, id := range ids {
					t.AppendRow(table.Row{id, formatHours(o.SuggestedAdjustments[id])})
				}
			})
		},
	}
}

func newReadyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ready <project-id>",
		Short: "List incomplete tasks whose prerequisites are satisfied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			tasks, err := svc.Risk.TasksReadyToStart(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(tasks) == 0 && !viper.GetBool("json") {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks ready to start.")
				return nil
			}
			return render(cmd, tasks, func(t table.Writer) { taskRows(t, tasks) })
		},
	}
}

func newBlockedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocked <project-id>",
		Short: "List tasks held back by unsatisfied prerequisites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			blocked, err := svc.Risk.BlockedTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(blocked) == 0 && !viper.GetBool("json") {
				fmt.Fprintln(cmd.OutOrStdout(), "No blocked tasks.")
				return nil
			}
			return render(cmd, blocked, func(t table.Writer) { blockedRows(t, blocked) })
		},
	}
}

func newConnectedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "connected <project-id>",
		Short: "Rank tasks by number of dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := servicesFromConfig(cmd)
			if err != nil {
				return err
			}
			tasks, err := svc.Risk.MostConnectedTasks(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return render(cmd, tasks, func(t table.Writer) { taskRows(t, tasks) })
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of tasks to show (0 for all)")
	return cmd
}

func blockedRows(t table.Writer, blocked []risk.Blocked) {
	t.AppendHeader(table.Row{"TASK", "TITLE", "BLOCKED BY"})
	for _, b := range blocked {
		ids := make([]string, len(b.Blocking))
		for i, d := range b.Blocking {
			ids[i] = fmt.Sprintf("%s (%s)", d.PrerequisiteID, d.Type.ShortCode())
		}
		t.AppendRow(table.Row{b.Task.ID, truncate(b.Task.Title, 40), strings.Join(ids, ", ")})
	}
}
