package tinystore

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "tinystore"

// storeMetrics holds the Prometheus collectors of one store, already
// curried with its name. A nil *storeMetrics records nothing.
type storeMetrics struct {
	writes        *prometheus.CounterVec
	notifications prometheus.Counter
	panics        prometheus.Counter
	listeners     prometheus.Gauge
	dispatch      prometheus.Observer
}

// newStoreMetrics registers (or reuses) the collectors on reg and binds
// them to the store name.
func newStoreMetrics(reg prometheus.Registerer, namespace, store string) (*storeMetrics, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}

	writes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "writes_total",
		Help:      "Total number of state writes, by store and write mode",
	}, []string{"store", "mode"}))
	if err != nil {
		return nil, err
	}

	notifications, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of listener invocations",
	}, []string{"store"}))
	if err != nil {
		return nil, err
	}

	panics, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listener_panics_total",
		Help:      "Total number of recovered listener panics",
	}, []string{"store"}))
	if err != nil {
		return nil, err
	}

	listeners, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "listeners",
		Help:      "Number of registered listeners",
	}, []string{"store"}))
	if err != nil {
		return nil, err
	}

	dispatch, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent running all listeners of one write",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"store"}))
	if err != nil {
		return nil, err
	}

	labels := prometheus.Labels{"store": store}
	return &storeMetrics{
		writes:        writes.MustCurryWith(labels),
		notifications: notifications.With(labels),
		panics:        panics.With(labels),
		listeners:     listeners.With(labels),
		dispatch:      dispatch.With(labels),
	}, nil
}

// register registers c, or returns the collector already registered under
// the same descriptor so that stores can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (m *storeMetrics) write(mode writeMode) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(string(mode)).Inc()
}

func (m *storeMetrics) setListeners(n int) {
	if m == nil {
		return
	}
	m.listeners.Set(float64(n))
}

func (m *storeMetrics) notified(n int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.notifications.Add(float64(n))
	m.dispatch.Observe(elapsed.Seconds())
}

func (m *storeMetrics) panicked() {
	if m == nil {
		return
	}
	m.panics.Inc()
}
