// Package cmd defines and implements the CLI commands for the logoresolver executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/config"
	"github.com/JakeFAU/logo-resolver/internal/logging"
)

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime is what every subcommand needs before it builds services.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

type rootOptions struct {
	configFile string
	envFile    string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "logoresolver",
		Short: "Finds, validates, and stores the logo of each website in a list.",
		Long: `logoresolver fetches each site's home page, discovers logo candidates from
link relations, image attributes, inline SVG and header regions, and stores the
first candidate that decodes to a usable image.`,
		SilenceUsage: true,

		// Loads configuration before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, rt))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, ok := cmd.Context().Value(runtimeKey).(*runtime); ok {
				_ = rt.logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func loadRuntime(opts *rootOptions) (*runtime, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return &runtime{cfg: cfg, logger: logger}, nil
}

func runtimeFrom(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
