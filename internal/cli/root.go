// Package cli implements the orgaud commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/project-kessel/orgaud/internal/config"
)

// Version is set at build time
var Version = "dev"

// configFile is bound to the --config flag
var configFile string

// NewRootCmd creates the orgaud root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orgaud",
		Short: "Organization audience protocol mapper",
		Long: `orgaud adds the audiences declared by a subject's organizations to
OIDC access tokens and introspection responses.

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (ORGAUD_*)
  3. Configuration file (if --config or ORGAUD_CONFIG is set)
  4. Built-in defaults`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (YAML, JSON or TOML)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewApplyCmd())
	cmd.AddCommand(NewDescribeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadProvider loads configuration (file + env vars + flags) and creates
// the component provider with a shared logger and observer
func loadProvider(cmd *cobra.Command) (*config.Provider, *slog.Logger, error) {
	configPath := configFile
	if configPath == "" {
		configPath = os.Getenv(config.EnvPrefix + "CONFIG")
	}

	loader, err := config.NewLoaderWithFlags(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	provider := config.NewProvider(cfg)

	logger := config.NewLoggerTo(cmd.ErrOrStderr(), cfg.Observability)
	observer, err := config.NewObserverWithLogger(cfg.Observability, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create observer: %w", err)
	}
	provider.SetObserver(observer)

	return provider, logger, nil
}
