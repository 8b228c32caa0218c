package logo

import "errors"

// Sentinel errors used to classify pipeline failures into a Status.
var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrFetch               = errors.New("fetch failed")
	ErrNoCandidate         = errors.New("no candidate found")
	ErrAllCandidatesFailed = errors.New("all candidates failed")
)

// StatusFor maps an error returned by the pipeline onto a terminal status.
// Unknown errors, including context cancellation, count as fetch errors since
// they surface while talking to the remote host.
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrInvalidURL):
		return StatusInvalidURL
	case errors.Is(err, ErrNoCandidate):
		return StatusNoCandidateFound
	case errors.Is(err, ErrAllCandidatesFailed):
		return StatusAllCandidatesFailed
	default:
		return StatusFetchError
	}
}
