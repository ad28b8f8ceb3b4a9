// Package sync exposes sync cycles, reconciliation issues and reports over
// HTTP.
//
// # Routes
//
//   - POST /sync/run, GET /sync/status, POST /sync/stop
//   - GET /sync/cycles, /sync/cycles/:id, /sync/cycles/:id/changes and
//     /sync/cycles/:id/report (CSV activity report)
//   - GET /issues, GET /issues/export, POST /issues/:id/resolve
//   - GET /reports, /reports/:name (archived issue reports)
//   - GET /metrics (Prometheus)
//
// The Service behind the handler is also used by the CLI.
package sync
