// Package fanout turns synchronous store notifications into buffered
// per-client channels.
//
// This package is internal to tinystore. The HTTP host registers a single
// store listener that encodes each new state and hands it to a [Hub]; every
// streaming client (SSE or WebSocket) then reads from its own channel.
//
// Delivery to clients is non-blocking: when a client's buffer is full the
// message is dropped for that client, so a slow browser tab never delays a
// write to the store. The hub also remembers the latest message so that a
// new client can be sent the current state before any update.
package fanout
