// Package api hosts the HTTP server for on-demand scrape runs. Routes:
//   - GET /healthz and /readyz for health checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to execute a run synchronously.
//   - GET /v1/runs, /v1/runs/{run_id} and /v1/runs/{run_id}/records to read finished runs back.
package api
