// Package ratelimit throttles store writes made over HTTP. Every (store,
// client) pair gets its own token bucket, so a noisy client of one store
// neither slows other clients nor other stores sharing the limiter.
package ratelimit

import (
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultIdleTTL is how long a bucket may go unused before it is dropped.
const defaultIdleTTL = 10 * time.Minute

// Key identifies one bucket.
type Key struct {
	// Store is the name of the store being written.
	Store string

	// Client identifies the caller, usually its IP address.
	Client string
}

// Decision is the outcome of [Limiter.Allow].
type Decision struct {
	// Allowed is true when the write may proceed.
	Allowed bool

	// RetryAfter is how long the client should wait before the next
	// write would be allowed. Zero when Allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, the unit of the
// Retry-After header. It is at least 1 for a denied write.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter holds the write buckets. A nil *Limiter allows every write.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu        sync.Mutex
	buckets   map[Key]*bucket
	nextSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter allowing rps writes per second per key with bursts
// of up to burst. Buckets unused for idleTTL are dropped; zero means ten
// minutes. It returns nil when rps or burst is not positive.
func New(rps float64, burst int, idleTTL time.Duration) *Limiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &Limiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		buckets: make(map[Key]*bucket),
	}
}

// Allow decides whether a write for key at now may proceed. A denied write
// does not consume a token. Keys without a client are never limited.
func (l *Limiter) Allow(key Key, now time.Time) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}
	key.Client = strings.TrimSpace(key.Client)
	if key.Client == "" {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return Decision{RetryAfter: l.idleTTL}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{RetryAfter: delay}
	}
	return Decision{Allowed: true}
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops idle buckets at most once per idleTTL. Callers hold mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	l.nextSweep = now.Add(l.idleTTL)

	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}
