package logo

import (
	"net/http"
	"time"
)

// CandidateKind says how a candidate's locator is interpreted.
type CandidateKind string

// Candidate kinds.
const (
	// KindRemoteAsset locators are absolute http(s) or data: URLs.
	KindRemoteAsset CandidateKind = "remote_asset"
	// KindInlineMarkup locators carry the SVG markup itself.
	KindInlineMarkup CandidateKind = "inline_markup"
)

// Candidate is a single nominated logo location.
type Candidate struct {
	Locator  string        `json:"locator"`
	Kind     CandidateKind `json:"kind"`
	Score    int           `json:"score"`
	Strategy string        `json:"strategy"`
	// Order is the discovery sequence number; the ranker uses it as the tie-break.
	Order int `json:"order"`
}

// Status is the terminal outcome of one URL.
type Status string

// Resolution statuses.
const (
	StatusSuccess             Status = "success"
	StatusNoCandidateFound    Status = "no_candidate_found"
	StatusAllCandidatesFailed Status = "all_candidates_failed"
	StatusFetchError          Status = "fetch_error"
	StatusInvalidURL          Status = "invalid_url"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{
	StatusSuccess,
	StatusNoCandidateFound,
	StatusAllCandidatesFailed,
	StatusFetchError,
	StatusInvalidURL,
}

// Artifact is the normalized image produced for a successful resolution.
type Artifact struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size_bytes"`
	Digest      string `json:"sha256"`
	Bytes       []byte `json:"-"`
}

// Result is the outcome of processing one URL. It is built once by the unit of
// work and never mutated after it is handed to the orchestrator.
type Result struct {
	SourceURL        string        `json:"source_url"`
	Domain           string        `json:"domain,omitempty"`
	SiteName         string        `json:"site_name,omitempty"`
	Status           Status        `json:"status"`
	Artifact         *Artifact     `json:"artifact,omitempty"`
	Diagnostic       string        `json:"diagnostic,omitempty"`
	CandidateLocator string        `json:"candidate_locator,omitempty"`
	Attempts         int           `json:"attempts"`
	UsedHeadless     bool          `json:"used_headless,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration_ns"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation. URL is the
// final URL after redirects.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
