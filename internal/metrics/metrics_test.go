package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveResolution(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(resolutionsTotal.WithLabelValues("metrics_test"))
	ObserveResolution("metrics_test", 250*time.Millisecond)
	if got := testutil.ToFloat64(resolutionsTotal.WithLabelValues("metrics_test")); got != before+1 {
		t.Errorf("Expected resolutionsTotal to grow by 1, got %f", got-before)
	}
	if n := testutil.CollectAndCount(resolutionDurationSeconds); n == 0 {
		t.Error("Expected resolution duration to be observed")
	}
}

func TestObserveCandidateCountsBytes(t *testing.T) {
	Init()

	before := testutil.ToFloat64(assetBytesTotal)
	ObserveCandidate("metrics_test", "accepted", 128)
	ObserveCandidate("metrics_test", "fetch_error", 0)
	if got := testutil.ToFloat64(assetBytesTotal); got != before+128 {
		t.Errorf("Expected asset bytes to grow by 128, got %f", got-before)
	}
	if got := testutil.ToFloat64(candidateAttemptsTotal.WithLabelValues("metrics_test", "fetch_error")); got != 1 {
		t.Errorf("Expected one fetch_error attempt, got %f", got)
	}
}

func TestActiveWorkersGauge(t *testing.T) {
	Init()

	before := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if got := testutil.ToFloat64(activeWorkers); got != before+1 {
		t.Errorf("Expected active workers to be %f, got %f", before+1, got)
	}
	DecActiveWorkers()
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
