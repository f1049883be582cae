package tinystore

import "sync"

// HookMode is the shape of what a [Hook] hands to the component using it.
type HookMode int

const (
	// ModePair exposes both the observed state and the setter.
	ModePair HookMode = iota

	// ModeValue exposes only the observed state.
	ModeValue

	// ModeSetter exposes only the setter.
	ModeSetter
)

// String returns a readable name for the mode.
func (m HookMode) String() string {
	switch m {
	case ModePair:
		return "pair"
	case ModeValue:
		return "value"
	case ModeSetter:
		return "setter"
	default:
		return "unknown"
	}
}

// hookConfig mirrors the {getter, setter} options of the binding contract.
type hookConfig struct {
	getter bool
	setter bool
}

// HookOption configures a [Hook] created by [Store.Use].
type HookOption func(*hookConfig)

// WithoutGetter makes the hook expose only the setter ([ModeSetter]).
func WithoutGetter() HookOption {
	return func(cfg *hookConfig) {
		cfg.getter = false
	}
}

// WithoutSetter makes the hook expose only the state ([ModeValue]).
func WithoutSetter() HookOption {
	return func(cfg *hookConfig) {
		cfg.setter = false
	}
}

// mode resolves the option pair. Disabling both is not meaningful and falls
// back to the pair.
func (c hookConfig) mode() HookMode {
	switch {
	case c.getter && !c.setter:
		return ModeValue
	case !c.getter && c.setter:
		return ModeSetter
	default:
		return ModePair
	}
}

// HookResult is what a framework adapter returns to the component. Only the
// members allowed by Mode are populated; the others are zero.
type HookResult[T any] struct {
	Mode  HookMode
	State T
	Set   SetFunc[T]
}

// Hook is a mounted, framework-agnostic subscription to a [Store].
//
// A UI adapter creates one per component mount with [Store.Use], reads the
// observed copy while rendering and calls [Hook.Unmount] when the component
// goes away. The observed copy is seeded with the current state at mount,
// atomically with the registration, and refreshed by every notification.
type Hook[T any] struct {
	store    *Store[T]
	mode     HookMode
	onChange func(T)
	unsub    Unsubscribe

	mu       sync.RWMutex
	observed T
	mounted  bool
}

// Use mounts a [Hook] on the store.
//
// onChange is the re-render trigger: it is called after the observed copy
// has been updated, once per write, with the new state. It may be nil. It
// runs inside the store's notification pass, so it must not call the
// hook's setter synchronously.
//
// Example (a component adapter):
//
//	h := counter.Use(func(map[string]any) { component.Invalidate() })
//	defer h.Unmount()
//	state, set := h.Pair()
//	set(map[string]any{"counter": state["counter"].(int) + 1}, false)
func (s *Store[T]) Use(onChange func(T), opts ...HookOption) *Hook[T] {
	cfg := hookConfig{getter: true, setter: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Hook[T]{
		store:    s,
		mode:     cfg.mode(),
		onChange: onChange,
		mounted:  true,
	}
	h.unsub = s.subscribe(h.receive, h.seed)
	return h
}

// seed sets the observed copy at mount.
func (h *Hook[T]) seed(state T) {
	h.mu.Lock()
	h.observed = state
	h.mu.Unlock()
}

// receive is the listener registered by the hook.
func (h *Hook[T]) receive(state T) {
	h.mu.Lock()
	if !h.mounted {
		h.mu.Unlock()
		return
	}
	h.observed = state
	h.mu.Unlock()

	if h.onChange != nil {
		h.onChange(state)
	}
}

// Mode reports what the hook exposes.
func (h *Hook[T]) Mode() HookMode {
	return h.mode
}

// Value returns the observed copy of the state.
func (h *Hook[T]) Value() T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.observed
}

// Setter returns the store writer bound to this hook.
func (h *Hook[T]) Setter() SetFunc[T] {
	return h.store.SetCurrent
}

// Pair returns the observed state and the setter.
func (h *Hook[T]) Pair() (T, SetFunc[T]) {
	return h.Value(), h.Setter()
}

// Result returns the members allowed by the hook's mode.
func (h *Hook[T]) Result() HookResult[T] {
	res := HookResult[T]{Mode: h.mode}
	switch h.mode {
	case ModeValue:
		res.State = h.Value()
	case ModeSetter:
		res.Set = h.Setter()
	default:
		res.State, res.Set = h.Pair()
	}
	return res
}

// Mounted reports whether [Hook.Unmount] has not been called yet.
func (h *Hook[T]) Mounted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mounted
}

// Unmount removes the hook's listener. It is safe to call more than once.
func (h *Hook[T]) Unmount() {
	h.mu.Lock()
	h.mounted = false
	h.mu.Unlock()
	h.unsub()
}
