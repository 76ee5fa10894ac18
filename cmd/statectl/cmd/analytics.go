package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/lyzr/teststate/common/repository"
	"github.com/spf13/cobra"
)

func newFlakyCmd(a *app) *cobra.Command {
	var opts repository.FlakyOptions

	cmd := &cobra.Command{
		Use:   "flaky",
		Short: "List tests whose pass rate falls in the flaky band",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flaky, err := a.manager.FlakyTests(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(cmd, flaky)
			}
			if len(flaky) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No flaky tests found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TEST CASE\tRUNS\tPASSED\tPASS RATE\tLATEST")
			for _, f := range flaky {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%s\n",
					f.TestCaseID, f.TotalRuns, f.PassCount, f.PassRate*100, f.LatestExecution.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().Float64Var(&opts.PassRateMin, "min", 0, "lowest pass rate counted as flaky (default 0.3)")
	cmd.Flags().Float64Var(&opts.PassRateMax, "max", 0, "highest pass rate counted as flaky (default 0.7)")
	cmd.Flags().IntVar(&opts.MinRuns, "min-runs", 0, "minimum runs before a test is judged (default 5)")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show execution counts and mean durations by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.manager.ExecutionStats(cmd.Context(), days)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(cmd, stats)
			}
			if len(stats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No executions in window.")
				return nil
			}

			statuses := make([]string, 0, len(stats))
			for s := range stats {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "STATUS\tCOUNT\tAVG DURATION")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%d\t%.0fms\n", s, stats[s].Count, stats[s].AvgDurationMs)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "window in days")
	return cmd
}

func newSuccessRateCmd(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "success-rate",
		Short: "Show the share of self-heal decisions engineers approved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := a.manager.SelfHealSuccessRate(cmd.Context(), days)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(cmd, map[string]float64{"success_rate": rate})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.1f%% of self-heal decisions approved in the last %d days\n", rate*100, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "window in days")
	return cmd
}
