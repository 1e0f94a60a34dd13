// Package api hosts the HTTP server, middleware, and REST handlers for the
// page ingest service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/auth/... for session login/logout.
//   - POST /v1/crawl and /v1/crawl/async for page ingestion.
//   - GET /v1/tasks/{job_id} for async job polling.
//   - GET /v1/posts... for cached and durable reads.
package api
