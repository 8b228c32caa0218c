package progress

import "context"

// Reporter receives one Update per completed URL. The orchestrator calls it
// from a single goroutine, so implementations must return quickly.
type Reporter interface {
	Report(u Update)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Update)

// Report calls f(u).
func (f ReporterFunc) Report(u Update) { f(u) }

// Multi fans an Update out to several reporters in order.
type Multi []Reporter

// Report forwards u to every non-nil reporter.
func (m Multi) Report(u Update) {
	for _, r := range m {
		if r != nil {
			r.Report(u)
		}
	}
}

// Sink consumes batches of updates. Implementations must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Update) error
	Close(ctx context.Context) error
}
