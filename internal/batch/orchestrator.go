// Package batch drives the resolution engine over a list of URLs with a fixed
// worker pool. It is the only concurrency-aware part of the pipeline.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/clock"
	"github.com/JakeFAU/logo-resolver/internal/logging"
	"github.com/JakeFAU/logo-resolver/internal/logo"
	"github.com/JakeFAU/logo-resolver/internal/metrics"
	"github.com/JakeFAU/logo-resolver/internal/progress"
	"github.com/JakeFAU/logo-resolver/internal/queue/memory"
)

// DiagnosticCanceled marks URLs that never reached a worker.
const DiagnosticCanceled = "canceled before dispatch"

const publishTimeout = 10 * time.Second

// Resolver processes one URL. *engine.Engine satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) logo.Result
}

// Options controls a run.
type Options struct {
	// Workers is the pool size W. Values below 1 mean 1.
	Workers int
	// PacingDelay is slept between units when Workers is 1. Ignored otherwise.
	PacingDelay time.Duration
	// QueueDepth bounds pending units. Zero means 2*Workers.
	QueueDepth int
	// Topic receives a Notification per result when a publisher is set.
	Topic string
}

// Deps wires optional collaborators.
type Deps struct {
	Progress  progress.Reporter
	Publisher logo.Publisher
	Clock     logo.Clock
	Logger    *zap.Logger
}

// Notification is the message published for each finished URL.
type Notification struct {
	BatchID string      `json:"batch_id"`
	Result  logo.Result `json:"result"`
}

// Orchestrator runs batches. It holds no per-run state and may run several
// batches at once.
type Orchestrator struct {
	resolver  Resolver
	opts      Options
	progress  progress.Reporter
	publisher logo.Publisher
	clock     logo.Clock
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(resolver Resolver, opts Options, deps Deps) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 2 * opts.Workers
	}
	if opts.PacingDelay < 0 {
		opts.PacingDelay = 0
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	return &Orchestrator{
		resolver:  resolver,
		opts:      opts,
		progress:  deps.Progress,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		logger:    logging.OrNop(deps.Logger),
	}
}

// Options returns the effective options.
func (o *Orchestrator) Options() Options {
	return o.opts
}

// WithOptions returns a copy of o using opts, for per-request overrides.
func (o *Orchestrator) WithOptions(opts Options) *Orchestrator {
	if opts.Topic == "" {
		opts.Topic = o.opts.Topic
	}
	return New(o.resolver, opts, Deps{
		Progress:  o.progress,
		Publisher: o.publisher,
		Clock:     o.clock,
		Logger:    o.logger,
	})
}

// Run processes urls and blocks until every distinct URL has a result.
func (o *Orchestrator) Run(ctx context.Context, batchID string, urls []string) *logo.Report {
	return o.Start(ctx, batchID, urls).Wait()
}

// Start begins a run in the background. Canceling ctx stops dispatch; units
// already taken by a worker finish normally, and every URL not yet dispatched
// is reported as a fetch error with DiagnosticCanceled.
func (o *Orchestrator) Start(ctx context.Context, batchID string, urls []string) *Run {
	run := &Run{
		ID:      batchID,
		report:  logo.NewReport(urls),
		done:    make(chan struct{}),
		started: o.clock.Now(),
	}
	run.total = run.report.Expected()
	o.logger.Info("batch started",
		zap.String("batch_id", batchID),
		zap.Int("urls", run.total),
		zap.Int("workers", o.opts.Workers),
	)
	go o.execute(ctx, run, distinct(urls))
	return run
}

type unit struct {
	index int
	url   string
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, urls []string) {
	defer close(run.done)

	queue := memory.NewQueue[unit](o.opts.QueueDepth)
	results := make(chan logo.Result, o.opts.Workers)

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		o.collect(run, results)
	}()

	var workers sync.WaitGroup
	for id := 0; id < o.opts.Workers; id++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			o.work(ctx, id, queue, results)
		}(id)
	}

	enqueued := o.dispatch(ctx, queue, urls)
	queue.Close()
	workers.Wait()

	// Whatever a worker never took was never dispatched.
	canceled := 0
	for _, u := range queue.Drain() {
		results <- o.canceledResult(u.url)
		canceled++
	}
	for _, u := range urls[enqueued:] {
		results <- o.canceledResult(u)
		canceled++
	}
	close(results)
	<-collected

	state := StateCompleted
	if canceled > 0 {
		state = StateCanceled
	}
	run.setState(state)
	metrics.ObserveBatch(state)
	counts := run.report.Counts()
	o.logger.Info("batch finished",
		zap.String("batch_id", run.ID),
		zap.String("state", state),
		zap.Int("succeeded", counts.Succeeded),
		zap.Int("failed", counts.Failed),
		zap.Int("canceled", canceled),
		zap.Duration("elapsed", o.clock.Now().Sub(run.started)),
	)
}

// dispatch feeds the queue in input order and returns how many URLs it
// enqueued before ctx ended.
func (o *Orchestrator) dispatch(ctx context.Context, queue *memory.Queue[unit], urls []string) int {
	for i, u := range urls {
		if err := queue.Enqueue(ctx, unit{index: i, url: u}); err != nil {
			o.logger.Info("dispatch stopped", zap.Int("dispatched", i), zap.Error(err))
			return i
		}
	}
	return len(urls)
}

func (o *Orchestrator) work(ctx context.Context, id int, queue *memory.Queue[unit], results chan<- logo.Result) {
	processed := 0
	for {
		if processed > 0 && o.opts.Workers == 1 && o.opts.PacingDelay > 0 {
			if !sleep(ctx, o.opts.PacingDelay) {
				return
			}
		}
		u, err := queue.Dequeue(ctx)
		if err != nil {
			return
		}
		metrics.IncActiveWorkers()
		// A dispatched unit runs to completion even if the batch is canceled.
		res := o.resolveUnit(context.WithoutCancel(ctx), id, u)
		metrics.DecActiveWorkers()
		results <- res
		processed++
	}
}

// resolveUnit converts panics into a fetch error result so one bad URL never
// takes down the pool.
func (o *Orchestrator) resolveUnit(ctx context.Context, worker int, u unit) (res logo.Result) {
	start := o.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("resolution panicked",
				zap.Int("worker", worker),
				zap.String("url", u.url),
				zap.Any("panic", r),
			)
			res = logo.Result{
				SourceURL:  u.url,
				Domain:     logo.Domain(u.url),
				Status:     logo.StatusFetchError,
				Diagnostic: fmt.Sprintf("internal error: %v", r),
				StartedAt:  start,
				Duration:   o.clock.Now().Sub(start),
			}
		}
	}()
	o.logger.Debug("unit dispatched", zap.Int("worker", worker), zap.String("url", u.url))
	res = o.resolver.Resolve(ctx, u.url)
	res.SourceURL = u.url
	return res
}

func (o *Orchestrator) canceledResult(u string) logo.Result {
	return logo.Result{
		SourceURL:  u,
		Domain:     logo.Domain(u),
		Status:     logo.StatusFetchError,
		Diagnostic: DiagnosticCanceled,
		StartedAt:  o.clock.Now(),
	}
}

// collect is the single writer of the report.
func (o *Orchestrator) collect(run *Run, results <-chan logo.Result) {
	completed := 0
	for res := range results {
		if !run.report.Add(res) {
			o.logger.Warn("duplicate result ignored", zap.String("url", res.SourceURL))
			continue
		}
		completed++
		if o.progress != nil {
			o.progress.Report(progress.Update{
				BatchID:   run.ID,
				Completed: completed,
				Total:     run.total,
				URL:       res.SourceURL,
				Status:    res.Status,
				Elapsed:   o.clock.Now().Sub(run.started),
			})
		}
		o.publish(run.ID, res)
	}
}

func (o *Orchestrator) publish(batchID string, res logo.Result) {
	if o.publisher == nil || o.opts.Topic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := o.publisher.Publish(ctx, o.opts.Topic, Notification{BatchID: batchID, Result: res}); err != nil {
		o.logger.Warn("publish result failed", zap.String("url", res.SourceURL), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func distinct(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
