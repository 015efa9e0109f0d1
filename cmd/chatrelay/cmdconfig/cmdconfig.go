// Package cmdconfig resolves configuration, logging and storage for the
// chatrelay subcommands.
package cmdconfig

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/drivers"
)

// Persistent flag names registered on the root command.
const (
	ConfigFlag = "config"
	DebugFlag  = "debug"
)

// AddPersistentFlags registers the flags every subcommand understands.
func AddPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(ConfigFlag, "c", "", "Path to a TOML config file")
	cmd.PersistentFlags().Bool(DebugFlag, false, "Enable debug logging")
}

// ConfigPath returns the --config value, or "" when unset or undefined.
func ConfigPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString(ConfigFlag)
	return path
}

// Load reads the configuration named by --config and applies --debug.
func Load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(ConfigPath(cmd))
	if err != nil {
		return nil, err
	}
	if debug, _ := cmd.Flags().GetBool(DebugFlag); debug {
		cfg.Debug = true
	}
	return cfg, nil
}

const (
	StoreFlag      = "store"
	StoreFlagUsage = "Session store as driver:target (e.g. file:./data, sqlite:./chat.db)"
)

// AddStoreFlag registers --store, which overrides the configured session store.
func AddStoreFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, StoreFlag, "", StoreFlagUsage)
}

// OpenStore opens override when set and the configured store otherwise.
func OpenStore(ctx context.Context, cfg *config.Config, override string, logger *zap.Logger) (storage.Store, error) {
	spec := cfg.StoreSpec()
	if override != "" {
		parsed, err := drivers.ParseSpec(override)
		if err != nil {
			return nil, err
		}
		spec = parsed
	}

	store, err := drivers.Open(ctx, spec, logger)
	if err != nil {
		return nil, fmt.Errorf("could not open session store %s: %w", spec, err)
	}
	logger.Debug("opened session store", zap.Stringer("store", spec))
	return store, nil
}
