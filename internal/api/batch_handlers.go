package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/JakeFAU/logo-resolver/internal/logo"
	"github.com/JakeFAU/logo-resolver/internal/storage/memory"
)

const (
	defaultBatchLimit = 50
	maxBatchLimit     = 500
)

type progressDTO struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
}

type batchDTO struct {
	ID                string       `json:"batch_id"`
	State             string       `json:"state"`
	SubmittedAt       time.Time    `json:"submitted_at"`
	Workers           int          `json:"worker_count"`
	PacingDelayMillis int64        `json:"pacing_delay_millis"`
	Progress          progressDTO  `json:"progress"`
	Counts            logo.Counts  `json:"counts"`
	Report            *logo.Report `json:"report,omitempty"`
}

// toBatchDTO snapshots rec. The report is only attached for single-batch reads.
func toBatchDTO(rec memory.BatchRecord, withReport bool) batchDTO {
	report := rec.Run.Report()
	completed := report.Len()
	total := rec.Run.Total()
	dto := batchDTO{
		ID:                rec.ID,
		State:             rec.Run.State(),
		SubmittedAt:       rec.SubmittedAt,
		Workers:           rec.Workers,
		PacingDelayMillis: rec.PacingDelay.Milliseconds(),
		Progress: progressDTO{
			Completed: completed,
			Total:     total,
		},
		Counts: report.Counts(),
	}
	if total > 0 {
		dto.Progress.Fraction = float64(completed) / float64(total)
	}
	if withReport {
		dto.Report = report
	}
	return dto
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
