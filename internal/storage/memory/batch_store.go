package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/logo-resolver/internal/batch"
)

var (
	// ErrBatchNotFound is returned for unknown batch IDs.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrBatchExists is returned when a batch ID is registered twice.
	ErrBatchExists = errors.New("batch already exists")
)

// BatchRecord is a submitted batch and the handle that stops it.
type BatchRecord struct {
	ID          string
	SubmittedAt time.Time
	Workers     int
	PacingDelay time.Duration
	Run         *batch.Run

	cancel context.CancelFunc
}

// Finished reports whether every URL of the batch has a result.
func (r BatchRecord) Finished() bool {
	select {
	case <-r.Run.Done():
		return true
	default:
		return false
	}
}

// BatchStore keeps batches for the life of the process.
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]BatchRecord
}

// NewBatchStore constructs an empty BatchStore.
func NewBatchStore() *BatchStore {
	return &BatchStore{batches: make(map[string]BatchRecord)}
}

// Create registers rec. cancel stops the batch and may be nil.
func (s *BatchStore) Create(rec BatchRecord, cancel context.CancelFunc) error {
	if rec.ID == "" || rec.Run == nil {
		return errors.New("batch id and run are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[rec.ID]; exists {
		return ErrBatchExists
	}
	rec.cancel = cancel
	s.batches[rec.ID] = rec
	return nil
}

// Get fetches a batch by ID.
func (s *BatchStore) Get(id string) (BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.batches[id]
	if !ok {
		return BatchRecord{}, ErrBatchNotFound
	}
	return rec, nil
}

// Cancel stops dispatch for a batch. Canceling a finished batch is a no-op.
func (s *BatchStore) Cancel(id string) (BatchRecord, error) {
	rec, err := s.Get(id)
	if err != nil {
		return BatchRecord{}, err
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	return rec, nil
}

// List returns every batch, newest first.
func (s *BatchStore) List() []BatchRecord {
	s.mu.RLock()
	out := make([]BatchRecord, 0, len(s.batches))
	for _, rec := range s.batches {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}

// Prune drops finished batches submitted before cutoff and returns how many
// were removed.
func (s *BatchStore) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.batches {
		if rec.SubmittedAt.Before(cutoff) && rec.Finished() {
			if rec.cancel != nil {
				rec.cancel()
			}
			delete(s.batches, id)
			removed++
		}
	}
	return removed
}

// CancelAll stops every running batch, for shutdown.
func (s *BatchStore) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.batches {
		if rec.cancel != nil {
			rec.cancel()
		}
	}
}
