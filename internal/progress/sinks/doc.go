// Package sinks implements progress.Sink consumers: structured logs and
// Prometheus batch gauges.
package sinks
