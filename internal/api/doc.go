// Package api hosts the operator HTTP server that runs alongside a harvest.
// Routes:
//   - GET /healthz and /readyz for probes; readyz reports a degraded cache.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/summary for the most recent run summary.
package api
