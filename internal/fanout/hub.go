package fanout

import (
	"sync"
)

// clientBuffer is the number of messages a client may lag behind before
// messages are dropped for it.
const clientBuffer = 64

// Hub broadcasts encoded states to subscribed channels.
//
// Hub is safe for concurrent use. The zero value is not usable; create one
// with [NewHub].
type Hub struct {
	mu     sync.RWMutex
	latest []byte

	subMu       sync.RWMutex
	subscribers map[chan []byte]struct{}
	closed      bool
}

// NewHub creates an empty [Hub].
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Publish records msg as the latest message and sends it to every
// subscriber whose buffer has room.
func (h *Hub) Publish(msg []byte) {
	h.mu.Lock()
	h.latest = msg
	h.mu.Unlock()

	h.notifySubscribers(msg)
}

// Latest returns the last published message. ok is false before the first
// Publish. Stream handlers use it as the first frame for a new client.
func (h *Hub) Latest() (msg []byte, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.latest != nil
}

// Subscribe creates a new subscription and returns its channel.
//
// Caller must call [Hub.Unsubscribe] when done to prevent resource leaks.
// After [Hub.Close] the returned channel is already closed.
func (h *Hub) Subscribe() <-chan []byte {
	ch := make(chan []byte, clientBuffer)

	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (h *Hub) Unsubscribe(ch <-chan []byte) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	for subCh := range h.subscribers {
		if subCh == ch {
			delete(h.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.subMu.RLock()
	defer h.subMu.RUnlock()
	return len(h.subscribers)
}

// Close closes every subscriber channel. Later subscriptions receive an
// already-closed channel and later publishes reach nobody.
func (h *Hub) Close() {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// notifySubscribers is non-blocking: a full buffer drops the message for
// that subscriber rather than blocking the store write.
func (h *Hub) notifySubscribers(msg []byte) {
	h.subMu.RLock()
	defer h.subMu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			// subscriber is slow, drop the message
		}
	}
}
