package tinystore

// Listener is a callback registered with [Store.Subscribe].
//
// A Listener receives every state value written to the store after it was
// registered, until the [Unsubscribe] function returned for that
// registration is called. Listeners run synchronously on the goroutine that
// performed the write.
type Listener[T any] func(state T)

// Unsubscribe removes the registration it was returned for.
//
// Calling it more than once is a no-op after the first call.
type Unsubscribe func()

// SetFunc writes to a store. When replace is false the patch is merged into
// the current state; when true the state becomes patch verbatim.
type SetFunc[T any] func(patch T, replace bool)

// PanicPolicy decides what happens when a listener panics during a
// notification pass.
type PanicPolicy int

const (
	// RecoverPanics isolates each listener: a panic is recovered, logged with
	// a correlation ID and delivery continues with the next listener.
	RecoverPanics PanicPolicy = iota

	// PropagatePanics lets a listener panic reach the caller of the write.
	// Listeners after the panicking one are not called for that pass. The
	// state has already been committed when the panic surfaces.
	PropagatePanics
)

// String returns the config spelling of the policy.
func (p PanicPolicy) String() string {
	switch p {
	case RecoverPanics:
		return "recover"
	case PropagatePanics:
		return "propagate"
	default:
		return "unknown"
	}
}

// writeMode labels a write in logs, metrics and spans.
type writeMode string

const (
	modeMerge   writeMode = "merge"
	modeReplace writeMode = "replace"
	modeUpdate  writeMode = "update"
)

// registration is one Subscribe call. Identity is the id, not the func, so
// the same func can be registered twice and removed one copy at a time.
type registration[T any] struct {
	id uint64
	fn Listener[T]
}
