// Package server exposes the demo stores over HTTP.
//
// Every store has a JSON document {"store","state","computed","version"}
// available at GET /api/stores/{store} and streamed over a WebSocket at
// /ws/{store}: once on connect, then after every transition. The demo
// actions (counter, theme, cart, todos, users and posts, course requests)
// are plain JSON endpoints under /api that respond with the updated
// document or the action result.
//
// Operational endpoints:
//
//	GET /healthz                          liveness
//	GET /metrics                          Prometheus metrics (WithMetrics)
//	GET /api/revalidate?token=&store=     reload persisted stores from storage
package server
