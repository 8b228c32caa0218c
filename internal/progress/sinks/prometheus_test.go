package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/logo-resolver/internal/logo"
	"github.com/JakeFAU/logo-resolver/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures gauges and counters follow a batch lifecycle.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Consume(ctx, []progress.Update{
		{BatchID: "b1", Completed: 1, Total: 2, URL: "https://a.test", Status: logo.StatusSuccess},
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.batchesRunning))

	require.NoError(t, sink.Consume(ctx, []progress.Update{
		{BatchID: "b1", Completed: 2, Total: 2, URL: "https://b.test", Status: logo.StatusFetchError, Elapsed: 3 * time.Second},
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.batchesRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.urlsCompleted.WithLabelValues(string(logo.StatusSuccess))))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.urlsCompleted.WithLabelValues(string(logo.StatusFetchError))))
	require.Equal(t, 1, testutil.CollectAndCount(sink.batchRuntime, "logo_batch_runtime_seconds"))

	// A late duplicate for a finished batch must not resurrect it.
	require.NoError(t, sink.Consume(ctx, []progress.Update{
		{BatchID: "b1", Completed: 2, Total: 2, URL: "https://b.test", Status: logo.StatusFetchError},
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.batchesRunning))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestLogSinkWritesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), []progress.Update{
		{BatchID: "b2", Completed: 1, Total: 1, URL: "https://c.test", Status: logo.StatusInvalidURL},
	}))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.FilterMessage("batch progress").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "b2", fields["batch_id"])
	require.Equal(t, "invalid_url", fields["status"])
	require.EqualValues(t, 1, fields["completed"])
}
