// Package app builds the long-lived services from configuration and owns their
// shutdown. Both the CLI and the HTTP server run through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/api"
	"github.com/JakeFAU/logo-resolver/internal/batch"
	"github.com/JakeFAU/logo-resolver/internal/clock"
	"github.com/JakeFAU/logo-resolver/internal/config"
	"github.com/JakeFAU/logo-resolver/internal/discovery"
	"github.com/JakeFAU/logo-resolver/internal/engine"
	collyfetcher "github.com/JakeFAU/logo-resolver/internal/fetcher/colly"
	"github.com/JakeFAU/logo-resolver/internal/fetcher/datauri"
	headlessfetcher "github.com/JakeFAU/logo-resolver/internal/fetcher/headless"
	"github.com/JakeFAU/logo-resolver/internal/hash/sha256"
	"github.com/JakeFAU/logo-resolver/internal/headless/detector"
	"github.com/JakeFAU/logo-resolver/internal/id/uuid"
	"github.com/JakeFAU/logo-resolver/internal/logging"
	"github.com/JakeFAU/logo-resolver/internal/logo"
	"github.com/JakeFAU/logo-resolver/internal/normalize"
	"github.com/JakeFAU/logo-resolver/internal/policy/ratelimit"
	"github.com/JakeFAU/logo-resolver/internal/progress"
	progresssinks "github.com/JakeFAU/logo-resolver/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/logo-resolver/internal/publisher/memory"
	natspublisher "github.com/JakeFAU/logo-resolver/internal/publisher/nats"
	gcppublisher "github.com/JakeFAU/logo-resolver/internal/publisher/pubsub"
	"github.com/JakeFAU/logo-resolver/internal/resolve"
	gcsstorage "github.com/JakeFAU/logo-resolver/internal/storage/gcs"
	localstorage "github.com/JakeFAU/logo-resolver/internal/storage/local"
	memorystorage "github.com/JakeFAU/logo-resolver/internal/storage/memory"
)

const (
	shutdownTimeout = 10 * time.Second
	batchRetention  = time.Hour
)

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	clock        logo.Clock
	registerer   prometheus.Registerer
	engine       *engine.Engine
	orchestrator *batch.Orchestrator
	progressHub  *progress.Hub
	sink         logo.ContentSink
	publisher    logo.Publisher
	headless     *headlessfetcher.Fetcher
	closers      []func() error
}

// Option customizes Build.
type Option func(*App)

// WithRegisterer registers the progress collectors against reg instead of the
// default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) { a.registerer = reg }
}

// WithClock overrides the wall clock.
func WithClock(c logo.Clock) Option {
	return func(a *App) { a.clock = c }
}

// Build creates the application's dependencies from cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	a := &App{
		cfg:        cfg,
		logger:     logging.OrNop(logger),
		clock:      clock.System{},
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger.Info("building application dependencies",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("notify_backend", cfg.Notify.Backend),
		zap.Bool("headless", cfg.Headless.Enabled),
	)

	var err error
	if a.sink, err = a.setupStorage(ctx); err != nil {
		a.closeAll()
		return nil, err
	}
	topic, err := a.setupPublisher(ctx)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	if err = a.setupProgress(); err != nil {
		a.closeAll()
		return nil, err
	}
	if a.engine, err = a.setupEngine(); err != nil {
		a.closeAll()
		return nil, err
	}

	a.orchestrator = batch.New(a.engine, batch.Options{
		Workers:     cfg.Batch.WorkerCount,
		PacingDelay: time.Duration(cfg.Batch.PacingDelayMillis) * time.Millisecond,
		QueueDepth:  cfg.Batch.QueueDepth,
		Topic:       topic,
	}, batch.Deps{
		Progress:  a.progressHub,
		Publisher: a.publisher,
		Clock:     a.clock,
		Logger:    a.logger.Named("batch"),
	})
	a.logger.Info("batch orchestrator ready",
		zap.Int("workers", cfg.Batch.WorkerCount),
		zap.Int("pacing_delay_millis", cfg.Batch.PacingDelayMillis),
		zap.Int("queue_depth", cfg.Batch.QueueDepth),
	)
	return a, nil
}

// Orchestrator exposes the configured batch orchestrator.
func (a *App) Orchestrator() *batch.Orchestrator {
	return a.orchestrator
}

// Sink exposes the artifact sink.
func (a *App) Sink() logo.ContentSink {
	return a.sink
}

// Publisher exposes the result notifier, nil when notifications are off.
func (a *App) Publisher() logo.Publisher {
	return a.publisher
}

// ResolveBatch runs urls to completion under a fresh batch ID.
func (a *App) ResolveBatch(ctx context.Context, urls []string) (string, *logo.Report, error) {
	id, err := uuid.New().NewID()
	if err != nil {
		return "", nil, fmt.Errorf("generate batch id: %w", err)
	}
	return id, a.orchestrator.Run(ctx, id, urls), nil
}

// Serve runs the HTTP API until ctx is canceled, then drains running batches.
func (a *App) Serve(ctx context.Context) error {
	batches := memorystorage.NewBatchStore()
	apiServer := api.NewServer(batches, a.orchestrator, uuid.New(), a.clock, api.Options{}, a.logger.Named("api"))

	port := a.cfg.Server.Port
	if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil && p > 0 {
		port = p
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			stop()
		}
	}()
	go a.pruneBatches(serveCtx, batches)

	<-serveCtx.Done()
	a.logger.Info("shutdown initiated")
	apiServer.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	for _, rec := range batches.List() {
		select {
		case <-rec.Run.Done():
		case <-shutdownCtx.Done():
			a.logger.Warn("batch still running at shutdown", zap.String("batch_id", rec.ID))
		}
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (a *App) pruneBatches(ctx context.Context, batches *memorystorage.BatchStore) {
	ticker := time.NewTicker(batchRetention / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := batches.Prune(a.clock.Now().Add(-batchRetention)); n > 0 {
				a.logger.Debug("pruned finished batches", zap.Int("count", n))
			}
		}
	}
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	a.closeAll()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeAll() {
	if a.headless != nil {
		a.headless.Close()
		a.headless = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) setupStorage(ctx context.Context) (logo.ContentSink, error) {
	cfg := a.cfg.Storage
	switch cfg.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		sink, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.GCS.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			return nil, fmt.Errorf("gcs sink init failed: %w", err)
		}
		a.logger.Info("using GCS storage backend", zap.String("bucket", cfg.GCS.Bucket))
		return sink, nil
	case config.BackendMemory:
		a.logger.Info("using in-memory storage backend")
		return memorystorage.NewSink(cfg.Prefix), nil
	default:
		sink, err := localstorage.New(localstorage.Config{BaseDir: cfg.Local.BaseDir, Prefix: cfg.Prefix})
		if err != nil {
			return nil, fmt.Errorf("local sink init failed: %w", err)
		}
		a.logger.Info("using local storage backend", zap.String("path", cfg.Local.BaseDir))
		return sink, nil
	}
}

// setupPublisher returns the topic or subject results are published to.
func (a *App) setupPublisher(ctx context.Context) (string, error) {
	cfg := a.cfg.Notify
	switch cfg.Backend {
	case config.BackendPubSub:
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return "", fmt.Errorf("pubsub client init failed: %w", err)
		}
		pub := gcppublisher.New(client)
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.Topic),
		)
		return cfg.PubSub.Topic, nil
	case config.BackendNATS:
		pub, err := natspublisher.Connect(cfg.NATS.URL, a.logger.Named("nats"))
		if err != nil {
			return "", fmt.Errorf("nats publisher init failed: %w", err)
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
		a.logger.Info("NATS publisher initialized", zap.String("subject", cfg.NATS.Subject))
		return cfg.NATS.Subject, nil
	case config.BackendMemory:
		a.publisher = memorypublisher.New()
		a.logger.Info("using in-memory publisher")
		return "results", nil
	default:
		a.logger.Info("result notifications disabled")
		return "", nil
	}
}

func (a *App) setupProgress() error {
	promSink, err := progresssinks.NewPrometheusSink(a.registerer)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	a.progressHub = progress.NewHub(progress.Config{
		Logger: a.logger.Named("progress_hub"),
	}, progresssinks.NewLogSink(a.logger.Named("progress")), promSink)
	return nil
}

func (a *App) setupEngine() (*engine.Engine, error) {
	cfg := a.cfg
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second

	var fetcher logo.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      timeout,
		MaxBodyBytes: int(cfg.Resolver.MaxAssetBytes) + 1,
	})
	if cfg.HTTP.PerHostRPS > 0 {
		fetcher = &ratelimit.Fetcher{
			Next: fetcher,
			Limiter: ratelimit.New(ratelimit.Config{
				DefaultRPS:   cfg.HTTP.PerHostRPS,
				DefaultBurst: cfg.HTTP.PerHostBurst,
			}),
		}
		a.logger.Info("per-host rate limiting enabled",
			zap.Float64("rps", cfg.HTTP.PerHostRPS),
			zap.Int("burst", cfg.HTTP.PerHostBurst),
		)
	}
	fetcher = &datauri.Fetcher{Next: fetcher}

	deps := engine.Deps{
		Fetcher:    fetcher,
		Discoverer: discovery.New(a.logger.Named("discovery")),
		Clock:      a.clock,
		Logger:     a.logger.Named("engine"),
	}
	if cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.headless = headless
		deps.Headless = headless
		deps.Detector = detector.NewHeuristic(cfg.Headless.PromotionThresh)
		a.logger.Info("headless promotion enabled", zap.Int("max_parallel", cfg.Headless.MaxParallel))
	}

	background, err := normalize.ParseColor(cfg.Normalizer.BackgroundColor)
	if err != nil {
		return nil, fmt.Errorf("normalizer background: %w", err)
	}
	normalizer := normalize.New(normalize.Options{
		OutputEncoding: cfg.Normalizer.OutputEncoding,
		Background:     background,
		JPEGQuality:    cfg.Normalizer.JPEGQuality,
		Hasher:         sha256.New(),
	}, a.sink, uuid.NewRandom())
	validator := normalize.Validator{
		MinDimension: cfg.Resolver.MinimumLogoDimensionPixels,
		MaxBytes:     cfg.Resolver.MaxAssetBytes,
		VectorSize:   cfg.Resolver.VectorRenderSize,
	}
	deps.Resolver = resolve.New(fetcher, validator, normalizer, a.logger.Named("resolver"))

	eng, err := engine.New(deps)
	if err != nil {
		return nil, fmt.Errorf("engine init failed: %w", err)
	}
	return eng, nil
}
