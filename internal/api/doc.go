// Package api hosts the HTTP server, middleware, and ops handlers for the
// harvester. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/run for the status of the latest harvest run, fed by the
//     progress StatusSink.
package api
