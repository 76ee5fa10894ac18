package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the tenant's store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			healthy := a.manager.HealthCheck(cmd.Context())
			if a.jsonOutput {
				if err := a.printJSON(cmd, map[string]bool{"healthy": healthy}); err != nil {
					return err
				}
			} else if healthy {
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "unavailable")
			}

			if !healthy {
				return errors.New("store unavailable")
			}
			return nil
		},
	}
}
