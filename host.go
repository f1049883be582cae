package tinystore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/jpalmerr/tinystore/dashboard"
	"github.com/jpalmerr/tinystore/internal/fanout"
	"github.com/jpalmerr/tinystore/internal/ratelimit"
	"github.com/jpalmerr/tinystore/internal/server"
)

// Host serves a [Store] over HTTP: a JSON state API, live SSE and WebSocket
// streams of every committed state, Prometheus metrics and an inspector
// page.
//
// Example:
//
//	store := tinystore.MustNew(map[string]any{"counter": 0}, tinystore.WithName("counter"))
//	host, err := tinystore.NewHost(store, tinystore.WithPort(9090))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := host.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Remote writes go through the same write path as local ones: a PATCH is a
// [Store.SetState] and a PUT is a [Store.ReplaceState], so in-process
// listeners observe them like any other write.
type Host struct {
	name      string
	port      int
	title     string
	logger    *slog.Logger
	limiter   *ratelimit.Limiter
	cfg       hostConfig
	source    server.Source
	subscribe func(Listener[[]byte]) Unsubscribe

	mu   sync.Mutex
	addr net.Addr
}

// NewHost creates a [Host] for s.
//
// The host does not touch the store until [Host.Start] is called.
//
// Returns an error if s is nil or an option is invalid.
func NewHost[T any](s *Store[T], opts ...HostOption) (*Host, error) {
	if s == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	cfg := hostConfig{
		port:  defaultHostPort,
		rps:   defaultWriteRPS,
		burst: defaultWriteBurst,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	title := cfg.title
	if title == "" {
		title = s.Name()
	}

	src := jsonSource[T]{store: s}

	return &Host{
		name:      s.Name(),
		port:      cfg.port,
		title:     title,
		logger:    logger,
		limiter:   ratelimit.New(cfg.rps, cfg.burst, 0),
		cfg:       cfg,
		source:    src,
		subscribe: src.watch,
	}, nil
}

// Port returns the configured HTTP port.
func (h *Host) Port() int {
	return h.port
}

// Addr returns the address the host listens on, or nil while it is not
// running.
func (h *Host) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Start serves the store and blocks until ctx is cancelled.
//
// Returns nil on clean shutdown, or an error if the server fails to bind.
func (h *Host) Start(ctx context.Context) error {
	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	hub := fanout.NewHub()
	defer hub.Close()

	unsubscribe := h.subscribe(hub.Publish)
	defer unsubscribe()

	srv := server.NewServer(server.Config{
		Source:    h.source,
		Hub:       hub,
		Port:      h.port,
		Assets:    dashboard.Assets,
		Title:     h.title,
		StoreName: h.name,
		Logger:    h.logger,
		Limiter:   h.limiter,
		Gatherer:  h.cfg.gatherer,
		ReadOnly:  h.cfg.readOnly,
	})
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	h.mu.Lock()
	h.addr = srv.Addr()
	h.mu.Unlock()

	h.logger.Info("tinystore host started",
		"store", h.name,
		"url", fmt.Sprintf("http://localhost:%d", h.port),
		"read_only", h.cfg.readOnly,
	)

	<-ctx.Done()

	h.mu.Lock()
	h.addr = nil
	h.mu.Unlock()

	h.logger.Info("tinystore host stopped", "store", h.name)
	return nil
}

// jsonSource exposes a Store[T] to the server as JSON.
type jsonSource[T any] struct {
	store *Store[T]
}

func (j jsonSource[T]) Snapshot() ([]byte, error) {
	return json.Marshal(j.store.GetState())
}

func (j jsonSource[T]) Apply(body []byte, replace bool) error {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	j.store.SetCurrent(v, replace)
	return nil
}

// watch subscribes to the store and forwards every committed state, JSON
// encoded, to publish. States that fail to encode are logged and skipped.
func (j jsonSource[T]) watch(publish Listener[[]byte]) Unsubscribe {
	return j.store.Subscribe(func(state T) {
		data, err := json.Marshal(state)
		if err != nil {
			j.store.logger.Error("failed to encode state for streams",
				"store", j.store.name,
				"error", err,
			)
			return
		}
		publish(data)
	})
}
