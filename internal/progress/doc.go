// Package progress carries batch progress updates from the orchestrator to
// whoever is watching. The orchestrator calls a Reporter synchronously after
// each completion; a Hub turns those calls into batched, non-blocking
// deliveries to slower sinks such as log streams.
package progress
