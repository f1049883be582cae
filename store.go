package tinystore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultStoreName = "default"

// Store holds exactly one value of type T and broadcasts every change to
// all registered listeners, synchronously, before the write returns.
//
// A Store is created with [New] and shared by reference between consumers.
// Consumers read with [Store.GetState], write with [Store.SetState] (shallow
// merge) or [Store.ReplaceState], and observe with [Store.Subscribe].
//
//	counter := tinystore.MustNew(map[string]any{"counter": 0})
//	unsub := counter.Subscribe(func(s map[string]any) {
//	    fmt.Println("counter is", s["counter"])
//	})
//	defer unsub()
//	counter.SetState(map[string]any{"counter": 1}) // prints "counter is 1"
//
// Store is safe for concurrent use. Each write (read, merge, store and
// notify) is one critical section guarded by a per-store write lock, so
// notification passes never interleave and every listener sees the states
// in commit order. The state and the listener list have their own lock,
// which lets a listener call [Store.GetState], [Store.Subscribe] and
// unsubscribe functions during a pass. Each pass iterates a snapshot of the
// listeners taken at write time: a listener removed during a pass still
// receives that pass and nothing after it.
//
// A listener must not write to its own store synchronously: the write waits
// for the pass it is part of and deadlocks. Write from another goroutine
// instead; that write runs once the current pass is over.
type Store[T any] struct {
	name      string
	logger    *slog.Logger
	merge     MergeFunc[T]
	navigator Navigator
	policy    PanicPolicy
	metrics   *storeMetrics
	tracer    trace.Tracer

	// writeMu serializes whole writes, notification included
	writeMu sync.Mutex

	mu        sync.RWMutex
	state     T
	listeners []registration[T]
	nextID    uint64
}

// New creates a [Store] holding initial.
//
// Without options New never fails. Options have these defaults:
//   - Name: "default"
//   - Logger: [slog.Default]
//   - Merge: [ShallowMerge]
//   - Navigator: logs a warning and does nothing
//   - Panic policy: [RecoverPanics]
//
// Returns an error if an option is invalid.
func New[T any](initial T, opts ...Option) (*Store[T], error) {
	cfg := &storeConfig{
		name:   defaultStoreName,
		policy: RecoverPanics,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	merge := ShallowMerge[T]
	if cfg.merge != nil {
		fn, ok := cfg.merge.(MergeFunc[T])
		if !ok {
			return nil, fmt.Errorf("merge function %T does not match state type %T", cfg.merge, initial)
		}
		merge = fn
	}

	navigator := cfg.navigator
	if navigator == nil {
		navigator = unwiredNavigator(logger, cfg.name)
	}

	var metrics *storeMetrics
	if cfg.registry != nil {
		m, err := newStoreMetrics(cfg.registry, cfg.namespace, cfg.name)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		metrics = m
	}

	return &Store[T]{
		name:      cfg.name,
		logger:    logger,
		merge:     merge,
		navigator: navigator,
		policy:    cfg.policy,
		metrics:   metrics,
		tracer:    cfg.tracer,
		state:     initial,
	}, nil
}

// MustNew is like [New] but panics if an option is invalid. It suits
// package-level store declarations.
func MustNew[T any](initial T, opts ...Option) *Store[T] {
	s, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("tinystore: %v", err))
	}
	return s
}

// Name returns the store name set with [WithName].
func (s *Store[T]) Name() string {
	return s.name
}

// GetState returns the current state as-is. It has no side effects.
//
// The value is not copied: for reference types (maps, slices, pointers)
// the caller sees the stored value and must not mutate it.
func (s *Store[T]) GetState() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState merges patch into the current state with the store's
// [MergeFunc] and notifies every listener with the merged state.
//
// The merge is shallow: top-level keys of patch overwrite those of the
// current state, untouched keys are kept, nested values are replaced
// wholesale. SetState returns after all listeners have run. Concurrent
// writes wait for each other.
func (s *Store[T]) SetState(patch T) {
	s.write(modeMerge, func(current T) T {
		return s.merge(current, patch)
	})
}

// ReplaceState makes next the state verbatim, dropping every key of the
// previous state, and notifies every listener with it.
func (s *Store[T]) ReplaceState(next T) {
	s.write(modeReplace, func(T) T {
		return next
	})
}

// Update replaces the state with fn(current) and notifies every listener.
//
// fn runs inside the write's critical section, so the read and the write
// cannot be interleaved with another writer. fn must not call back into the
// store.
func (s *Store[T]) Update(fn func(current T) T) {
	if fn == nil {
		return
	}
	s.write(modeUpdate, fn)
}

// Subscribe registers l and returns the function that removes it.
//
// Each call creates a new registration: subscribing the same function twice
// makes it run twice per write until both registrations are removed. The
// returned [Unsubscribe] is idempotent. A nil listener is ignored and a
// no-op Unsubscribe is returned.
//
// A missing unsubscribe keeps the listener registered for the lifetime of
// the store.
func (s *Store[T]) Subscribe(l Listener[T]) Unsubscribe {
	return s.subscribe(l, nil)
}

// subscribe registers l. When seed is non-nil it is called with the current
// state under the same lock as the registration, so no write can land
// between the two.
func (s *Store[T]) subscribe(l Listener[T], seed func(T)) Unsubscribe {
	if l == nil {
		return func() {}
	}

	s.mu.Lock()
	if seed != nil {
		seed(s.state)
	}
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, registration[T]{id: id, fn: l})
	n := len(s.listeners)
	s.mu.Unlock()

	s.metrics.setListeners(n)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.remove(id)
		})
	}
}

// Len returns the number of registered listeners.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// GetCurrent proxies to [Store.GetState]. It is the escape hatch for code
// running outside any component lifecycle.
func (s *Store[T]) GetCurrent() T {
	return s.GetState()
}

// SetCurrent proxies to [Store.SetState] or, when replace is true, to
// [Store.ReplaceState].
func (s *Store[T]) SetCurrent(data T, replace bool) {
	if replace {
		s.ReplaceState(data)
		return
	}
	s.SetState(data)
}

// Navigate forwards target to the navigator injected with [WithNavigator].
// Before one is injected the call is logged and ignored.
func (s *Store[T]) Navigate(target string) {
	s.navigator(target)
}

// remove deletes the registration with the given id, keeping the order of
// the others. Unknown ids are ignored.
func (s *Store[T]) remove(id uint64) {
	s.mu.Lock()
	removed := false
	for i, reg := range s.listeners {
		if reg.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			removed = true
			break
		}
	}
	n := len(s.listeners)
	s.mu.Unlock()

	if removed {
		s.metrics.setListeners(n)
	}
}

// write commits next(current) and runs one notification pass, holding the
// write lock across both.
func (s *Store[T]) write(mode writeMode, next func(current T) T) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.tracer != nil {
		_, span := s.tracer.Start(context.Background(), "tinystore.write",
			trace.WithAttributes(
				attribute.String("tinystore.store", s.name),
				attribute.String("tinystore.mode", string(mode)),
			),
		)
		defer span.End()
	}

	state, snapshot := s.commit(next)
	s.metrics.write(mode)
	s.dispatch(state, snapshot)
}

// commit applies next under the lock and copies the listener list.
func (s *Store[T]) commit(next func(current T) T) (T, []registration[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = next(s.state)

	snapshot := make([]registration[T], len(s.listeners))
	copy(snapshot, s.listeners)
	return s.state, snapshot
}
