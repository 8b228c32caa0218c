package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/logging"
	"github.com/JakeFAU/logo-resolver/internal/progress"
)

// LogSink writes one log line per update.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logging.OrNop(logger)}
}

// Consume logs each update in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Update) error {
	for _, u := range batch {
		s.logger.Info("batch progress",
			zap.String("batch_id", u.BatchID),
			zap.Int("completed", u.Completed),
			zap.Int("total", u.Total),
			zap.String("url", u.URL),
			zap.String("status", string(u.Status)),
			zap.Duration("elapsed", u.Elapsed),
		)
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
