// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/batches to submit URLs, GET /v1/batches/{batch_id} for progress
//     and the partial report, POST /v1/batches/{batch_id}/cancel to stop one.
package api
