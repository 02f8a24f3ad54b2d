// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to trigger a synchronous crawl run.
//   - GET /v1/status for the pause deadline and quota usage.
//   - GET /v1/companies for the configured targets in visiting order.
//   - DELETE /v1/companies/{name} to purge a company's persisted data.
package api
