package tinystore

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// ErrNilLogger is returned by [New] when [WithLogger] is given a nil logger.
var ErrNilLogger = errors.New("logger cannot be nil")

// storeConfig holds mutable state during Store construction.
type storeConfig struct {
	name      string
	logger    *slog.Logger
	merge     any
	navigator Navigator
	policy    PanicPolicy
	registry  prometheus.Registerer
	namespace string
	tracer    trace.Tracer
}

// Option configures a [Store] during construction.
//
// Option implements the functional options pattern. Options return an
// error if validation fails, which [New] passes back to the caller.
//
// Built-in options: [WithName], [WithLogger], [WithMerge], [WithNavigator],
// [WithPanicPolicy], [WithMetrics], [WithTracer].
type Option func(*storeConfig) error

// WithName sets the store name used in log lines, metric labels and span
// attributes. Defaults to "default".
//
// Returns an error if the name is empty.
func WithName(name string) Option {
	return func(cfg *storeConfig) error {
		if name == "" {
			return errors.New("store name cannot be empty")
		}
		cfg.name = name
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the store.
//
// The logger receives listener panics (under [RecoverPanics]) and calls to
// an unwired navigator. If not specified, [slog.Default] is used.
//
// Returns [ErrNilLogger] if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *storeConfig) error {
		if logger == nil {
			return ErrNilLogger
		}
		cfg.logger = logger
		return nil
	}
}

// WithMerge replaces [ShallowMerge] as the merge policy of the store.
//
// The type parameter must match the state type of the store being built;
// [New] returns an error otherwise. A nil function is ignored.
//
// Example:
//
//	s, err := tinystore.New(Settings{},
//	    tinystore.WithMerge[Settings](func(cur, patch Settings) Settings {
//	        cur.Theme = patch.Theme // zero values are written too
//	        return cur
//	    }),
//	)
func WithMerge[T any](fn MergeFunc[T]) Option {
	return func(cfg *storeConfig) error {
		if fn == nil {
			return nil
		}
		cfg.merge = fn
		return nil
	}
}

// WithNavigator injects the collaborator behind [Store.Navigate].
//
// Without it the store uses a navigator that logs a warning and does
// nothing. A nil navigator is ignored.
func WithNavigator(nav Navigator) Option {
	return func(cfg *storeConfig) error {
		if nav == nil {
			return nil
		}
		cfg.navigator = nav
		return nil
	}
}

// WithPanicPolicy chooses how listener panics are handled. Defaults to
// [RecoverPanics].
func WithPanicPolicy(p PanicPolicy) Option {
	return func(cfg *storeConfig) error {
		switch p {
		case RecoverPanics, PropagatePanics:
			cfg.policy = p
			return nil
		default:
			return errors.New("unknown panic policy")
		}
	}
}

// WithMetrics registers Prometheus collectors for the store on reg.
//
// Several stores may share one registry: the collectors are registered
// once and labelled by store name. namespace prefixes every metric name;
// an empty namespace defaults to "tinystore".
//
// Returns an error if the registry is nil.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(cfg *storeConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		cfg.registry = reg
		cfg.namespace = namespace
		return nil
	}
}

// WithTracer starts one span per write on the given tracer. No spans are
// recorded without it.
func WithTracer(tracer trace.Tracer) Option {
	return func(cfg *storeConfig) error {
		if tracer == nil {
			return errors.New("tracer cannot be nil")
		}
		cfg.tracer = tracer
		return nil
	}
}
