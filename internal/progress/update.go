package progress

import (
	"errors"
	"time"

	"github.com/JakeFAU/logo-resolver/internal/logo"
)

// Update reports that one more URL of a batch has a result.
type Update struct {
	BatchID   string
	Completed int
	Total     int
	URL       string
	Status    logo.Status
	// Elapsed is the time since the batch started.
	Elapsed time.Duration
}

// Done reports whether this update completes its batch.
func (u Update) Done() bool {
	return u.Total > 0 && u.Completed >= u.Total
}

// Fraction returns completion in [0, 1].
func (u Update) Fraction() float64 {
	if u.Total <= 0 {
		return 0
	}
	return float64(u.Completed) / float64(u.Total)
}

// Validate rejects updates that cannot describe real progress.
func (u Update) Validate() error {
	switch {
	case u.Total <= 0:
		return errors.New("total must be positive")
	case u.Completed <= 0 || u.Completed > u.Total:
		return errors.New("completed must be within 1..total")
	case u.Elapsed < 0:
		return errors.New("elapsed must be >= 0")
	}
	return nil
}
