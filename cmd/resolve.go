package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/app"
	"github.com/JakeFAU/logo-resolver/internal/logo"
)

type resolveOptions struct {
	input       string
	report      string
	workers     int
	pacingDelay time.Duration
}

// newResolveCmd creates the 'resolve' subcommand, which runs one batch and
// writes its report.
func newResolveCmd() *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve [url...]",
		Short: "Resolves logos for URLs given as arguments or in an input file",
		Example: `  logoresolver resolve https://example.com
  logoresolver resolve --input sites.txt --report report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "file with one URL per line; # starts a comment")
	cmd.Flags().StringVarP(&opts.report, "report", "o", "", "write the JSON report here instead of stdout")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "override batch.worker_count")
	cmd.Flags().DurationVar(&opts.pacingDelay, "pacing-delay", -1, "override batch.pacing_delay_millis (single worker only)")
	return cmd
}

func runResolve(cmd *cobra.Command, opts *resolveOptions, args []string) error {
	rt, err := runtimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	urls := append([]string(nil), args...)
	if opts.input != "" {
		fromFile, err := readURLFile(opts.input)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given: pass them as arguments or with --input")
	}

	cfg := rt.cfg
	if opts.workers > 0 {
		cfg.Batch.WorkerCount = opts.workers
	}
	if opts.pacingDelay >= 0 {
		cfg.Batch.PacingDelayMillis = int(opts.pacingDelay.Milliseconds())
	}

	application, err := app.Build(cmd.Context(), cfg, rt.logger)
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

	batchID, report, err := application.ResolveBatch(cmd.Context(), urls)
	if err != nil {
		return fmt.Errorf("resolve batch: %w", err)
	}
	counts := report.Counts()
	rt.logger.Info("resolve finished",
		zap.String("batch_id", batchID),
		zap.Int("attempted", counts.Attempted),
		zap.Int("succeeded", counts.Succeeded),
		zap.Int("failed", counts.Failed),
	)

	if opts.report == "" {
		return writeReport(cmd.OutOrStdout(), report)
	}
	f, err := os.Create(opts.report)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := writeReport(f, report); err != nil {
		_ = f.Close() //nolint:errcheck // the write error is the one worth returning
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	rt.logger.Info("report written", zap.String("path", opts.report))
	return nil
}

func writeReport(w io.Writer, report *logo.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return readURLs(f)
}

// readURLs returns one URL per non-blank line, skipping # comments.
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return urls, nil
}
