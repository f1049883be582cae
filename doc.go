// Package tinystore provides a minimal observable state container: a
// [Store] holds one value of any type and synchronously notifies every
// subscribed listener when that value is written.
//
// Stores are meant to be shared by reference between independent consumers
// (UI components, background workers, request handlers) that need to read
// and react to the same piece of state.
//
// # Quick Start
//
//	counter := tinystore.MustNew(map[string]any{"counter": 0})
//
//	unsub := counter.Subscribe(func(s map[string]any) {
//	    fmt.Println("counter is", s["counter"])
//	})
//	defer unsub()
//
//	counter.SetState(map[string]any{"counter": 1}) // prints "counter is 1"
//
// # Writes
//
// [Store.SetState] shallow-merges a patch into the current state using the
// store's [MergeFunc] ([ShallowMerge] unless replaced with [WithMerge]).
// [Store.ReplaceState] swaps the state wholesale. [Store.Update] derives the
// next state from the current one atomically. Every write notifies each
// registered listener once, in registration order, before it returns.
//
// # Configuration
//
// Stores use the functional options pattern:
//
//	s, err := tinystore.New(Settings{Theme: "light"},
//	    tinystore.WithName("settings"),
//	    tinystore.WithLogger(logger),
//	    tinystore.WithPanicPolicy(tinystore.RecoverPanics),
//	    tinystore.WithMetrics(prometheus.DefaultRegisterer, ""),
//	)
//
// # Component Bindings
//
// [Store.Use] mounts a framework-agnostic [Hook]: it seeds an observed copy
// from the store, keeps it current and triggers a re-render callback on
// every write. [WithoutGetter] and [WithoutSetter] narrow what the hook
// exposes. [Store.GetCurrent] and [Store.SetCurrent] serve code that runs
// outside any component.
//
// # Serving a Store
//
// [Host] exposes a store over HTTP with a JSON state API, live SSE and
// WebSocket streams, Prometheus metrics and an inspector page. The
// tinystore command serves a map-shaped store from a YAML or TOML config.
//
// # Architecture
//
// tinystore consists of several internal packages (under internal/):
//
//   - internal/fanout: Turns store notifications into buffered per-client channels
//   - internal/server: HTTP server with state API, SSE and WebSocket streams
//   - internal/ratelimit: Per-client token buckets for write routes
//   - internal/seedwatch: Reloads the seed state file when it changes
//   - dashboard: Embedded inspector page
//
// The internal packages are not part of the public API and may change
// without notice.
package tinystore
