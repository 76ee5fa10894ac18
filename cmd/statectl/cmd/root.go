package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/lyzr/teststate/common/bootstrap"
	"github.com/lyzr/teststate/common/config"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SetupFunc builds the components a command runs against
type SetupFunc func(ctx context.Context, cfgFile string) (*bootstrap.Components, error)

// app carries per-invocation state shared by the subcommands
type app struct {
	setup SetupFunc
	v     *viper.Viper

	cfgFile    string
	jsonOutput bool

	components *bootstrap.Components
	manager    *state.Manager
}

// DefaultSetup loads configuration from cfgFile and the environment and
// connects to the configured store. Logs go to stderr so command output
// stays parseable.
func DefaultSetup(ctx context.Context, cfgFile string) (*bootstrap.Components, error) {
	cfg, err := config.LoadFile("statectl", cfgFile)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(cfg.Service.LogLevel, cfg.Service.LogFormat, os.Stderr)
	return bootstrap.Setup(ctx, "statectl",
		bootstrap.WithCustomConfig(cfg),
		bootstrap.WithCustomLogger(log),
		bootstrap.WithoutTelemetry(),
	)
}

// NewRootCmd builds the statectl command tree
func NewRootCmd(setup SetupFunc) *cobra.Command {
	a := &app{setup: setup, v: viper.New()}

	root := &cobra.Command{
		Use:   "statectl",
		Short: "statectl inspects and approves tenant test automation state",
		Long: `statectl talks directly to the test automation state store.

Every command is scoped to one tenant (hospital):

  statectl --tenant client_A health
  statectl --tenant client_A flaky --min 0.2 --max 0.8
  statectl --tenant client_A pending
  statectl --tenant client_A approve <heal-id> --notes "verified on staging"
  statectl --tenant client_A similar "Element not found: #submit"

Configuration comes from --config and the same environment variables the
API server reads (STORE_URI, CACHE_BACKEND, ...). The tenant may also be
set with STATECTL_TENANT.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.connect,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("tenant", "", "tenant (hospital) id")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print JSON instead of a table")

	a.v.SetEnvPrefix("STATECTL")
	a.v.AutomaticEnv()
	_ = a.v.BindPFlag("tenant", root.PersistentFlags().Lookup("tenant"))

	root.AddCommand(
		newHealthCmd(a),
		newFlakyCmd(a),
		newPendingCmd(a),
		newApproveCmd(a),
		newStatsCmd(a),
		newSuccessRateCmd(a),
		newSimilarCmd(a),
	)
	return root
}

// Execute runs statectl against the configured store
func Execute() error {
	return NewRootCmd(DefaultSetup).Execute()
}

func (a *app) connect(cmd *cobra.Command, args []string) error {
	tenantID := a.v.GetString("tenant")
	if tenantID == "" {
		return errors.New("tenant is required (--tenant or STATECTL_TENANT)")
	}

	ctx := cmd.Context()
	components, err := a.setup(ctx, a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	a.components = components

	a.manager, err = components.Tenants.Get(ctx, tenantID)
	if err != nil {
		_ = a.close(ctx)
		return err
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.components == nil {
		return nil
	}
	err := a.components.Shutdown(ctx)
	a.components = nil
	return err
}

func (a *app) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
