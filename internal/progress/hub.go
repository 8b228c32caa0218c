package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/logo-resolver/internal/logging"
)

// Config controls buffering and batching for the Hub. Zero values select the
// defaults below.
type Config struct {
	BufferSize   int
	MaxBatch     int
	FlushEvery   time.Duration
	SinkTimeout  time.Duration
	Logger       *zap.Logger
	dropLogEvery time.Duration
}

const (
	defaultBufferSize  = 1024
	defaultMaxBatch    = 100
	defaultFlushEvery  = 250 * time.Millisecond
	defaultSinkTimeout = 5 * time.Second
	defaultDropLog     = 5 * time.Second
)

// Hub buffers updates and delivers them to sinks on a background goroutine.
// Report never blocks: when the buffer is full the update is dropped.
type Hub struct {
	cfg     Config
	sinks   []Sink
	updates chan Update
	stop    chan struct{}
	done    chan struct{}
	logger  *zap.Logger
	dropLog *rate.Sometimes
	dropped atomic.Int64
	closed  atomic.Bool
	once    sync.Once
}

// NewHub starts a Hub that feeds the given sinks.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = defaultFlushEvery
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.dropLogEvery <= 0 {
		cfg.dropLogEvery = defaultDropLog
	}
	h := &Hub{
		cfg:     cfg,
		sinks:   append([]Sink(nil), sinks...),
		updates: make(chan Update, cfg.BufferSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logging.OrNop(cfg.Logger),
		dropLog: &rate.Sometimes{First: 1, Interval: cfg.dropLogEvery},
	}
	go h.run()
	return h
}

// Report implements Reporter.
func (h *Hub) Report(u Update) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := u.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress update", zap.Error(err))
		return
	}
	select {
	case h.updates <- u:
	default:
		h.dropped.Add(1)
		h.dropLog.Do(func() {
			h.logger.Warn("progress updates dropped due to backpressure", zap.Int64("dropped", h.dropped.Swap(0)))
		})
	}
}

// Close flushes buffered updates, closes the sinks, and waits for the
// background goroutine until ctx ends. Later calls only wait.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.stop)
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.done)
	ticker := time.NewTicker(h.cfg.FlushEvery)
	defer ticker.Stop()

	pending := make([]Update, 0, h.cfg.MaxBatch)
	for {
		select {
		case u := <-h.updates:
			pending = append(pending, u)
			if len(pending) >= h.cfg.MaxBatch {
				pending = h.flush(pending)
			}
		case <-ticker.C:
			pending = h.flush(pending)
		case <-h.stop:
			for {
				select {
				case u := <-h.updates:
					pending = append(pending, u)
				default:
					h.flush(pending)
					h.closeSinks()
					return
				}
			}
		}
	}
}

// flush delivers batch to every sink and returns the emptied slice for reuse.
func (h *Hub) flush(batch []Update) []Update {
	if len(batch) == 0 {
		return batch
	}
	out := append([]Update(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, out); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
	return batch[:0]
}

func (h *Hub) closeSinks() {
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
		cancel()
	}
}
