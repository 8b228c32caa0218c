package logo

import (
	"encoding/json"
	"sync"
)

// Counts aggregates a report by outcome.
type Counts struct {
	Attempted int            `json:"attempted"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByStatus  map[Status]int `json:"by_status"`
}

// Report collects one Result per input URL. Iteration follows input order;
// duplicate input URLs collapse into a single entry. A single goroutine writes
// while readers may take snapshots concurrently.
type Report struct {
	mu      sync.RWMutex
	order   []string
	index   map[string]struct{}
	results map[string]Result
}

// NewReport creates a report that expects the given URLs, in order.
func NewReport(urls []string) *Report {
	r := &Report{
		index:   make(map[string]struct{}, len(urls)),
		results: make(map[string]Result, len(urls)),
	}
	for _, u := range urls {
		r.track(u)
	}
	return r
}

// Add records the result for its source URL. It returns false when the URL
// already has a result; the first write wins.
func (r *Report) Add(result Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[result.SourceURL]; ok {
		return false
	}
	r.results[result.SourceURL] = result
	r.track(result.SourceURL)
	return true
}

func (r *Report) track(u string) {
	if _, ok := r.index[u]; ok {
		return
	}
	r.index[u] = struct{}{}
	r.order = append(r.order, u)
}

// Get returns the result recorded for sourceURL.
func (r *Report) Get(sourceURL string) (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[sourceURL]
	return res, ok
}

// Has reports whether sourceURL already has a result.
func (r *Report) Has(sourceURL string) bool {
	_, ok := r.Get(sourceURL)
	return ok
}

// Len returns the number of recorded results.
func (r *Report) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.results)
}

// Expected returns the number of distinct URLs the report accounts for.
func (r *Report) Expected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Results returns the recorded results in input order.
func (r *Report) Results() []Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Result, 0, len(r.results))
	for _, u := range r.order {
		if res, ok := r.results[u]; ok {
			out = append(out, res)
		}
	}
	return out
}

// Counts tallies the recorded results.
func (r *Report) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := Counts{ByStatus: make(map[Status]int, len(Statuses))}
	for _, res := range r.results {
		c.Attempted++
		c.ByStatus[res.Status]++
		if res.Status == StatusSuccess {
			c.Succeeded++
		} else {
			c.Failed++
		}
	}
	return c
}

type reportJSON struct {
	Counts  Counts   `json:"counts"`
	Results []Result `json:"results"`
}

// MarshalJSON renders the counts followed by the ordered results.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{Counts: r.Counts(), Results: r.Results()})
}
