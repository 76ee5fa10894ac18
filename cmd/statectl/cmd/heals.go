package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/lyzr/teststate/common/models"
	"github.com/spf13/cobra"
)

func newPendingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List self-heal decisions awaiting approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := a.manager.PendingApprovals(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(cmd, pending)
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending approvals.")
				return nil
			}
			return printHeals(cmd, pending)
		},
	}
}

func newApproveCmd(a *app) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "approve [heal_id]",
		Short: "Approve a pending self-heal decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			approved, err := a.manager.ApproveSelfHeal(cmd.Context(), args[0], notes)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(cmd, map[string]bool{"approved": approved})
			}
			if approved {
				fmt.Fprintf(cmd.OutOrStdout(), "Approved %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing to approve: %s is unknown or already approved\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "engineer notes stored with the approval")
	return cmd
}

func newSimilarCmd(a *app) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "similar [failure_reason]",
		Short: "Find past self-heal decisions for a similar failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			similar, err := a.manager.FindSimilarHeals(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(cmd, similar)
			}
			if len(similar) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No similar decisions found.")
				return nil
			}
			return printHeals(cmd, similar)
		},
	}

	cmd.Flags().Int64VarP(&limit, "limit", "l", 5, "maximum number of matches")
	return cmd
}

func printHeals(cmd *cobra.Command, heals []models.SelfHealDecision) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "HEAL ID\tTEST\tOLD SELECTOR\tNEW SELECTOR\tCONFIDENCE\tSTATE\tRECORDED")
	for _, h := range heals {
		state := "approved"
		if h.IsPending() {
			state = "pending"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			h.ID.Hex(),
			h.TestID,
			h.UIChangeDetected.OldSelector,
			h.UIChangeDetected.NewSelector,
			h.UIChangeDetected.Confidence,
			state,
			h.Timestamp.Format(time.RFC3339),
		)
	}
	return w.Flush()
}
