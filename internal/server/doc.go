// Package server provides the HTTP server that exposes a store.
//
// This package is internal to tinystore and handles all HTTP concerns:
//
//   - State API: "/api/state" reads (GET), merges (PATCH) and replaces (PUT)
//   - Streams: every committed state over Server-Sent Events at "/api/sse"
//     and over a WebSocket at "/api/ws"
//   - Metrics: Prometheus exposition at "/metrics"
//   - Inspector: the embedded HTML page at "/"
//
// The server sees the store only through the byte-oriented [Source]
// interface and the fanout hub, so it is independent of the state type.
// It supports graceful shutdown via context cancellation, with a 5-second
// timeout for in-flight requests.
//
// Users of the tinystore library start it through tinystore.Host.
package server
