// Package cmd defines the CLI commands for the hashtag-scraper executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/app"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/config"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/logging"
)

type stateKeyType string

const stateKey stateKeyType = "state"

// state is what PersistentPreRunE hands to subcommands.
type state struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp builds the service graph. Tests replace it.
var newApp = app.New

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "hashtag-scraper",
		Short: "Collects TikTok hashtag statistics.",
		Long: `hashtag-scraper reads TikTok's discovery and tag pages, normalizes the
hashtag statistics it finds, optionally enriches them and writes the records
to the configured outputs. It runs once from the command line or serves runs
over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), stateKey, &state{cfg: cfg, logger: logger}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if st, ok := cmd.Context().Value(stateKey).(*state); ok {
				_ = st.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func resolveState(ctx context.Context) (*state, error) {
	st, ok := ctx.Value(stateKey).(*state)
	if !ok || st == nil {
		return nil, errors.New("configuration not loaded")
	}
	return st, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
