package tinystore

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrInvalidPort is returned by [NewHost] when [WithPort] is given a
	// port outside 1-65535.
	ErrInvalidPort = errors.New("port must be between 1 and 65535")

	// ErrInvalidRate is returned by [NewHost] when [WithWriteRateLimit] is
	// given a non-positive rate or burst.
	ErrInvalidRate = errors.New("rate limit rps and burst must be positive")
)

const (
	defaultHostPort   = 8080
	defaultWriteRPS   = 20
	defaultWriteBurst = 40
)

// hostConfig holds mutable state during Host construction.
type hostConfig struct {
	port     int
	title    string
	logger   *slog.Logger
	rps      float64
	burst    int
	gatherer prometheus.Gatherer
	readOnly bool
}

// HostOption configures a [Host] during construction.
//
// Built-in options: [WithPort], [WithTitle], [WithHostLogger],
// [WithWriteRateLimit], [WithMetricsHandler], [WithReadOnly].
type HostOption func(*hostConfig) error

// WithPort sets the HTTP port of the host. Defaults to 8080.
//
// Returns [ErrInvalidPort] if the port is outside the valid range (1-65535).
func WithPort(port int) HostOption {
	return func(cfg *hostConfig) error {
		if port < 1 || port > 65535 {
			return ErrInvalidPort
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the title shown by the inspector page.
//
// If not set, the store name is used.
func WithTitle(title string) HostOption {
	return func(cfg *hostConfig) error {
		cfg.title = title
		return nil
	}
}

// WithHostLogger sets the logger for server events. If not specified,
// [slog.Default] is used.
//
// Returns [ErrNilLogger] if the logger is nil.
func WithHostLogger(logger *slog.Logger) HostOption {
	return func(cfg *hostConfig) error {
		if logger == nil {
			return ErrNilLogger
		}
		cfg.logger = logger
		return nil
	}
}

// WithWriteRateLimit limits PATCH and PUT requests per client address to
// rps requests per second with bursts of up to burst. Defaults to 20 rps
// with a burst of 40.
//
// Example:
//
//	host, err := tinystore.NewHost(store,
//	    tinystore.WithWriteRateLimit(5, 10),
//	)
//
// Returns [ErrInvalidRate] if rps or burst is not positive.
func WithWriteRateLimit(rps float64, burst int) HostOption {
	return func(cfg *hostConfig) error {
		if rps <= 0 || burst <= 0 {
			return ErrInvalidRate
		}
		cfg.rps = rps
		cfg.burst = burst
		return nil
	}
}

// WithMetricsHandler serves g at GET /metrics. Pair it with [WithMetrics]
// on the store to expose the store's collectors.
func WithMetricsHandler(g prometheus.Gatherer) HostOption {
	return func(cfg *hostConfig) error {
		if g == nil {
			return errors.New("metrics gatherer cannot be nil")
		}
		cfg.gatherer = g
		return nil
	}
}

// WithReadOnly disables the write routes. PATCH and PUT /api/state answer
// 405 Method Not Allowed.
func WithReadOnly() HostOption {
	return func(cfg *hostConfig) error {
		cfg.readOnly = true
		return nil
	}
}
