// Package api implements the HTTP API of the funnelstack server.
//
// New(src) returns a Handler that serves:
//
//	GET /api/pipeline                                  - stages with derived metrics + summary
//	GET /api/pipeline/chart?measure=count|acv&format=svg|png
//	GET /api/pipeline/table?measure=count|acv&format=tsv|md|html
//	GET /metrics                                       - Prometheus text exposition
//
// All endpoints:
//   - Read the source and derive metrics fresh on every request
//   - Return 405 for methods other than GET (OPTIONS answers CORS preflight)
//   - Report failures as JSON {"error": "..."}; no partial results
//
// No external HTTP framework is used.
package api
