package batch

import (
	"sync"
	"time"

	"github.com/JakeFAU/logo-resolver/internal/logo"
)

// Run run states.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateCanceled  = "canceled"
)

// Run is a batch in progress. Its report may be read while workers write.
type Run struct {
	ID      string
	report  *logo.Report
	total   int
	started time.Time
	done    chan struct{}

	mu    sync.RWMutex
	state string
}

// Report returns the live report.
func (r *Run) Report() *logo.Report {
	return r.report
}

// Total is the number of distinct URLs in the batch.
func (r *Run) Total() int {
	return r.total
}

// StartedAt is when the run began.
func (r *Run) StartedAt() time.Time {
	return r.started
}

// Done is closed once every URL has a result.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes and returns the final report.
func (r *Run) Wait() *logo.Report {
	<-r.done
	return r.report
}

// State is running until the run finishes, then completed or canceled.
func (r *Run) State() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == "" {
		return StateRunning
	}
	return r.state
}

func (r *Run) setState(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}
