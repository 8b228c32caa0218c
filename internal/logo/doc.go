// Package logo defines the types and ports shared by the resolution pipeline:
// candidates, per-URL results, the batch report, and the small interfaces that
// fetchers, sinks and notifiers implement.
package logo
