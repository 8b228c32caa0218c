package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/logo-resolver/internal/progress"
)

// PrometheusSink derives batch-level metrics from the update stream: how many
// batches are in flight, how many URLs each status has accounted for, and
// how long finished batches took.
type PrometheusSink struct {
	batchesRunning prometheus.Gauge
	urlsCompleted  *prometheus.CounterVec
	batchRuntime   prometheus.Histogram

	tracker *batchTracker
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		batchesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logo_batches_running",
			Help: "Batches that have reported progress but not finished.",
		}),
		urlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logo_batch_urls_completed_total",
			Help: "URLs accounted for by batch progress, by status.",
		}, []string{"status"}),
		batchRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logo_batch_runtime_seconds",
			Help:    "Wall time of finished batches.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		tracker: &batchTracker{running: make(map[string]struct{})},
	}
	for _, c := range []prometheus.Collector{s.batchesRunning, s.urlsCompleted, s.batchRuntime} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Update) error {
	for _, u := range batch {
		s.urlsCompleted.WithLabelValues(string(u.Status)).Inc()
		if s.tracker.start(u.BatchID) {
			s.batchesRunning.Inc()
		}
		if u.Done() && s.tracker.finish(u.BatchID) {
			s.batchesRunning.Dec()
			s.batchRuntime.Observe(u.Elapsed.Seconds())
		}
	}
	return nil
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type batchTracker struct {
	mu       sync.Mutex
	running  map[string]struct{}
	finished map[string]struct{}
}

// start returns true the first time a batch is seen.
func (t *batchTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	if _, ok := t.finished[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *batchTracker) finish(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	if t.finished == nil {
		t.finished = make(map[string]struct{})
	}
	t.finished[id] = struct{}{}
	return true
}
