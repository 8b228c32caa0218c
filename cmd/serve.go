package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/app"
)

// newServeCmd creates the 'serve' subcommand, which exposes batches over HTTP.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API for submitting and tracking batches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd.Context())
			if err != nil {
				return err
			}
			application, err := app.Build(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if cerr := application.Close(ctx); cerr != nil {
					rt.logger.Warn("close application failed", zap.Error(cerr))
				}
			}()
			if err := application.Serve(cmd.Context()); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
}
