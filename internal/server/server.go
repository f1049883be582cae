package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/tinystore/internal/fanout"
	"github.com/jpalmerr/tinystore/internal/ratelimit"
)

const (
	// streamWriteTimeout is the maximum time allowed for a single SSE or
	// WebSocket write. Must be <= shutdown timeout to ensure clean shutdown.
	streamWriteTimeout = 5 * time.Second

	// maxBodyBytes caps PATCH and PUT bodies.
	maxBodyBytes = 1 << 20

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "tinystore"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Source is the JSON view of a store that the server exposes.
type Source interface {
	// Snapshot returns the current state encoded as JSON.
	Snapshot() ([]byte, error)

	// Apply decodes body into a state value and merges it into the store,
	// or replaces the state when replace is true. Listeners have run when
	// Apply returns. An error means body was not a valid state.
	Apply(body []byte, replace bool) error
}

// Config configures a [Server].
type Config struct {
	// Source is the store being served. Required.
	Source Source

	// Hub carries every committed state, JSON encoded, to stream clients.
	// Required.
	Hub *fanout.Hub

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// Assets holds assets/index.html for the inspector page. May be nil.
	Assets fs.FS

	// Title is shown by the inspector page. Defaults to "tinystore".
	Title string

	// StoreName scopes the write rate limit buckets.
	StoreName string

	// Logger receives server events. Defaults to slog.Default().
	Logger *slog.Logger

	// Limiter rate limits write routes per store and client address. May
	// be nil.
	Limiter *ratelimit.Limiter

	// Gatherer backs GET /metrics. The route is absent when nil.
	Gatherer prometheus.Gatherer

	// ReadOnly makes PATCH and PUT /api/state answer 405.
	ReadOnly bool
}

// Server handles HTTP requests for a served store.
//
// Routes:
//   - GET /: the embedded inspector page
//   - GET /api/state: current state as JSON
//   - PATCH /api/state: shallow-merge the body into the state
//   - PUT /api/state: replace the state with the body
//   - GET /api/sse: Server-Sent Events stream of states
//   - GET /api/ws: WebSocket stream of states
//   - GET /metrics: Prometheus exposition, when configured
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	source    Source
	hub       *fanout.Hub
	port      int
	assets    fs.FS
	title     string
	storeName string
	logger    *slog.Logger
	limiter   *ratelimit.Limiter
	gatherer  prometheus.Gatherer
	readOnly  bool

	upgrader websocket.Upgrader

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		source:    cfg.Source,
		hub:       cfg.Hub,
		port:      cfg.Port,
		assets:    cfg.Assets,
		title:     cfg.Title,
		storeName: cfg.StoreName,
		logger:    logger,
		limiter:   cfg.Limiter,
		gatherer:  cfg.Gatherer,
		readOnly:  cfg.ReadOnly,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the router serving every route of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleGetState)
		if s.readOnly {
			r.Patch("/state", s.handleReadOnly)
			r.Put("/state", s.handleReadOnly)
		} else {
			r.With(s.rateLimit).Patch("/state", s.handleWriteState(false))
			r.With(s.rateLimit).Put("/state", s.handleWriteState(true))
		}
		r.Get("/sse", s.handleSSE)
		r.Get("/ws", s.handleWS)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	if s.assets != nil {
		r.Get("/", s.handleDashboard)
	}

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// all request contexts end when ctx does, which releases stream handlers
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server listens on, or nil before
// [Server.Start].
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// rateLimit rejects writes from clients that exhausted their bucket.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := s.limiter.Allow(ratelimit.Key{Store: s.storeName, Client: clientKey(r)}, time.Now())
		if !d.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller for rate limiting.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handleDashboard serves the inspector page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Inspector not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Inspector not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write inspector response", "error", err)
	}
}

// handleGetState returns the current state as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	data, err := s.source.Snapshot()
	if err != nil {
		s.logger.Error("failed to encode state", "error", err)
		http.Error(w, "Failed to encode state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write state response", "error", err)
	}
}

// initialFrame is the first message of a stream: the last state the hub
// carried, or a fresh snapshot before any write was published.
func (s *Server) initialFrame() ([]byte, error) {
	if msg, ok := s.hub.Latest(); ok {
		return msg, nil
	}
	return s.source.Snapshot()
}

// handleWriteState applies the request body as a merge or a replace.
func (s *Server) handleWriteState(replace bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}

		if err := s.source.Apply(body, replace); err != nil {
			http.Error(w, fmt.Sprintf("Invalid state: %v", err), http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// handleReadOnly rejects writes on a read-only server.
func (s *Server) handleReadOnly(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	http.Error(w, "Store is read-only", http.StatusMethodNotAllowed)
}

// handleSSE streams states via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// may be false for some ResponseWriter implementations
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before reading the first frame so no write is missed in between
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	initial, err := s.initialFrame()
	if err != nil {
		s.logger.Error("failed to encode state", "error", err)
		return
	}
	if err := writeAndFlush(initial); err != nil {
		return
	}

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := writeAndFlush(msg); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on both client disconnect and server shutdown
			return
		}
	}
}

// handleWS streams states over a WebSocket as JSON text frames.
//
// Incoming frames are read and discarded; a read error ends the stream.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure) {
					s.logger.Debug("websocket closed", "error", err)
				}
				return
			}
		}
	}()

	send := func(data []byte) error {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	initial, err := s.initialFrame()
	if err != nil {
		s.logger.Error("failed to encode state", "error", err)
		return
	}
	if err := send(initial); err != nil {
		return
	}

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := send(msg); err != nil {
				return
			}

		case <-closed:
			return

		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
