package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/tinystore/internal/fanout"
	"github.com/jpalmerr/tinystore/internal/ratelimit"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockSource implements Source over a JSON object and publishes every
// committed state to its hub, the way the root adapter does.
type mockSource struct {
	mu    sync.Mutex
	state map[string]any
	hub   *fanout.Hub
}

func newMockSource(initial map[string]any) *mockSource {
	if initial == nil {
		initial = map[string]any{}
	}
	return &mockSource{state: initial, hub: fanout.NewHub()}
}

func (m *mockSource) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.Marshal(m.state)
}

func (m *mockSource) Apply(body []byte, replace bool) error {
	var patch map[string]any
	if err := json.Unmarshal(body, &patch); err != nil {
		return err
	}

	m.mu.Lock()
	if replace {
		m.state = patch
	} else {
		merged := make(map[string]any, len(m.state)+len(patch))
		for k, v := range m.state {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		m.state = merged
	}
	data, err := json.Marshal(m.state)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.hub.Publish(data)
	return nil
}

func (m *mockSource) current() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// newTestServer builds a server over src with optional config tweaks.
func newTestServer(src *mockSource, tweak func(*Config)) *Server {
	cfg := Config{
		Source: src,
		Hub:    src.hub,
		Logger: testLogger(),
	}
	if tweak != nil {
		tweak(&cfg)
	}
	return NewServer(cfg)
}

// --- State API ---

func TestHandleGetState(t *testing.T) {
	src := newMockSource(map[string]any{"counter": 0})
	srv := newTestServer(src, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/state status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}

	var state map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if state["counter"] != float64(0) {
		t.Errorf("counter = %v, want 0", state["counter"])
	}
}

func TestHandleWriteState_PatchMerges(t *testing.T) {
	src := newMockSource(map[string]any{"a": 1, "b": 2})
	srv := newTestServer(src, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/state", strings.NewReader(`{"b":5}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("PATCH status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	state := src.current()
	if len(state) != 2 {
		t.Errorf("state = %v, want keys a and b", state)
	}
	if state["b"] != float64(5) {
		t.Errorf("b = %v, want 5", state["b"])
	}
}

func TestHandleWriteState_PutReplaces(t *testing.T) {
	src := newMockSource(map[string]any{"a": 1, "b": 2})
	srv := newTestServer(src, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/state", strings.NewReader(`{"c":3}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	state := src.current()
	if len(state) != 1 || state["c"] != float64(3) {
		t.Errorf("state = %v, want only c=3", state)
	}
}

func TestHandleWriteState_MalformedJSON(t *testing.T) {
	src := newMockSource(map[string]any{"a": 1})
	srv := newTestServer(src, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/state", strings.NewReader(`{"a":`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if src.current()["a"] != 1 {
		t.Errorf("state changed after malformed write: %v", src.current())
	}
}

func TestHandleWriteState_BodyTooLarge(t *testing.T) {
	src := newMockSource(nil)
	srv := newTestServer(src, nil)

	body := `{"blob":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPut, "/api/state", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestHandleWriteState_RateLimited(t *testing.T) {
	src := newMockSource(nil)
	srv := newTestServer(src, func(cfg *Config) {
		cfg.Limiter = ratelimit.New(0.001, 2, 0)
	})
	h := srv.Handler()

	codes := make([]int, 0, 3)
	var retryAfter string
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPatch, "/api/state", strings.NewReader(`{"n":1}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		retryAfter = rec.Header().Get("Retry-After")
	}

	want := []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}

	// at 0.001 rps the next token is roughly 1000s away
	if secs, err := strconv.Atoi(retryAfter); err != nil || secs < 900 {
		t.Errorf("Retry-After = %q, want about 1000 seconds", retryAfter)
	}

	// reads are never limited
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET after limit status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleWriteState_ReadOnly(t *testing.T) {
	src := newMockSource(map[string]any{"a": 1})
	srv := newTestServer(src, func(cfg *Config) {
		cfg.ReadOnly = true
	})

	for _, method := range []string{http.MethodPatch, http.MethodPut} {
		req := httptest.NewRequest(method, "/api/state", strings.NewReader(`{"a":2}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s status = %d, want %d", method, rec.Code, http.StatusMethodNotAllowed)
		}
	}
	if src.current()["a"] != 1 {
		t.Errorf("read-only state changed: %v", src.current())
	}
}

// --- Metrics ---

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_writes_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	src := newMockSource(nil)
	srv := newTestServer(src, func(cfg *Config) {
		cfg.Gatherer = reg
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "test_writes_total 1") {
		t.Errorf("metrics body missing counter, got: %s", rec.Body.String())
	}
}

func TestMetricsRoute_AbsentWithoutGatherer(t *testing.T) {
	srv := newTestServer(newMockSource(nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// --- SSE ---

func TestHandleSSE_BasicFlow(t *testing.T) {
	src := newMockSource(map[string]any{"counter": 0})
	srv := newTestServer(src, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	srv.handleSSE(rec, req)

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 initial state", len(events))
	}
	if events[0]["counter"] != float64(0) {
		t.Errorf("initial counter = %v, want 0", events[0]["counter"])
	}
}

func TestHandleSSE_InitialFrameFromHub(t *testing.T) {
	src := newMockSource(map[string]any{"counter": 0})
	srv := newTestServer(src, nil)

	// the hub carries a newer state than the source snapshot
	src.hub.Publish([]byte(`{"counter":7}`))

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	srv.handleSSE(rec, req)

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 initial state", len(events))
	}
	if events[0]["counter"] != float64(7) {
		t.Errorf("initial counter = %v, want 7 (latest published)", events[0]["counter"])
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	src := newMockSource(map[string]any{"counter": 0})
	srv := newTestServer(src, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	if err := src.Apply([]byte(`{"counter":1}`), false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// give time for update to be written
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("events = %d, want initial + 1 update; body: %s", len(events), rec.Body.String())
	}
	if events[1]["counter"] != float64(1) {
		t.Errorf("streamed counter = %v, want 1", events[1]["counter"])
	}
}

func TestHandleSSE_ClientDisconnect(t *testing.T) {
	srv := newTestServer(newMockSource(nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}
}

func TestHandleSSE_HubClosed(t *testing.T) {
	src := newMockSource(nil)
	srv := newTestServer(src, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	src.hub.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after hub close")
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	srv := newTestServer(newMockSource(nil), nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(ctx)
			rec := httptest.NewRecorder()

			srv.handleSSE(rec, req)
		}()
	}

	wg.Wait()

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 { // small tolerance for runtime variance
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestHandleSSE_ConcurrentClientsShutdown(t *testing.T) {
	srv := newTestServer(newMockSource(map[string]any{"a": 1}), nil)

	serverCtx, serverCancel := context.WithCancel(context.Background())

	numClients := 10
	var wg sync.WaitGroup
	started := make(chan struct{})
	var startedCount atomic.Int32

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(serverCtx)
			rec := httptest.NewRecorder()

			if startedCount.Add(1) == int32(numClients) {
				close(started)
			}

			srv.handleSSE(rec, req)
		}()
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("clients did not start in time")
	}

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("not all handlers exited after shutdown")
	}
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv := newTestServer(newMockSource(nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	w := &nonFlushWriter{header: make(http.Header)}

	srv.handleSSE(w, req)

	if w.statusCode != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.statusCode)
	}
}

type nonFlushWriter struct {
	header     http.Header
	statusCode int
	body       []byte
}

func (n *nonFlushWriter) Header() http.Header {
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	n.body = append(n.body, b...)
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.statusCode = statusCode
}

func TestHandleSSE_Headers(t *testing.T) {
	srv := newTestServer(newMockSource(nil), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	expectedHeaders := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}

	for key, expected := range expectedHeaders {
		if got := rec.Header().Get(key); got != expected {
			t.Errorf("header %s = %q, want %q", key, got, expected)
		}
	}
}

// TestHandleSSE_ServerShutdownIntegration tests that SSE handlers exit cleanly
// when the server context ends, using a real HTTP connection. Mock
// ResponseWriters don't support SetWriteDeadline.
func TestHandleSSE_ServerShutdownIntegration(t *testing.T) {
	srv := newTestServer(newMockSource(map[string]any{"a": 1}), nil)

	serverCtx, serverCancel := context.WithCancel(context.Background())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// simulates BaseContext
		r = r.WithContext(serverCtx)
		srv.handleSSE(w, r)
	})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	connDone := make(chan error, 1)
	go func() {
		resp, err := ts.Client().Do(req)
		if err != nil {
			connDone <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		buf := make([]byte, 1024)
		for {
			if _, err := resp.Body.Read(buf); err != nil {
				connDone <- nil
				return
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	select {
	case <-connDone:
	case <-time.After(3 * time.Second):
		t.Fatal("SSE connection did not close after server shutdown")
	}
}

// --- WebSocket ---

func TestHandleWS_StreamsStates(t *testing.T) {
	src := newMockSource(map[string]any{"counter": 0})
	srv := newTestServer(src, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.Close() }()

	readState := func() map[string]any {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		var state map[string]any
		if err := json.Unmarshal(data, &state); err != nil {
			t.Fatalf("failed to parse frame %q: %v", data, err)
		}
		return state
	}

	if got := readState(); got["counter"] != float64(0) {
		t.Errorf("initial counter = %v, want 0", got["counter"])
	}

	if err := src.Apply([]byte(`{"counter":1}`), false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := readState(); got["counter"] != float64(1) {
		t.Errorf("streamed counter = %v, want 1", got["counter"])
	}
}

func TestHandleWS_ClientCloseReleasesSubscription(t *testing.T) {
	src := newMockSource(nil)
	srv := newTestServer(src, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	// initial frame means the handler subscribed
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if got := src.hub.Len(); got != 1 {
		t.Fatalf("hub subscribers = %d, want 1", got)
	}

	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for src.hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after client close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// --- Helper to read SSE events from response ---

func parseSSEEvents(body string) []map[string]any {
	var results []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			var state map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &state); err == nil {
				results = append(results, state)
			}
		}
	}
	return results
}

// --- Server Start ---

func TestStart_AvailablePort_ServesState(t *testing.T) {
	srv := newTestServer(newMockSource(map[string]any{"counter": 7}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() on available port returned error: %v", err)
	}

	port := srv.Addr().(*net.TCPAddr).Port
	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/api/state")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"counter":7`)) {
		t.Errorf("body = %s, want counter 7", body)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	srv := newTestServer(newMockSource(nil), func(cfg *Config) {
		cfg.Port = port
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	srv := newTestServer(newMockSource(nil), func(cfg *Config) {
		cfg.Port = -1
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}

// --- Benchmark ---

func BenchmarkHandleSSE_SingleClient(b *testing.B) {
	srv := newTestServer(newMockSource(map[string]any{"counter": 0}), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()

		srv.handleSSE(rec, req)
		cancel()
	}
}

// --- Inspector page ---

// mockFS implements fs.ReadFileFS for testing inspector rendering.
type mockFS struct {
	content string
}

func (m *mockFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *mockFS) ReadFile(name string) ([]byte, error) {
	if name == "assets/index.html" {
		return []byte(m.content), nil
	}
	return nil, fs.ErrNotExist
}

func dashboardServer(assets fs.FS, title string) *Server {
	return newTestServer(newMockSource(nil), func(cfg *Config) {
		cfg.Assets = assets
		cfg.Title = title
	})
}

func TestHandleDashboard_CustomTitle(t *testing.T) {
	srv := dashboardServer(&mockFS{content: "<title>{{.Title}}</title><h1>{{.Title}}</h1>"}, "Checkout Cart")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "<title>Checkout Cart</title>") {
		t.Errorf("expected title tag with custom title, got: %s", body)
	}
	if !strings.Contains(body, "<h1>Checkout Cart</h1>") {
		t.Errorf("expected h1 with custom title, got: %s", body)
	}
}

func TestHandleDashboard_DefaultTitle(t *testing.T) {
	srv := dashboardServer(&mockFS{content: "<title>{{.Title}}</title>"}, "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, req)

	if !strings.Contains(rec.Body.String(), "<title>tinystore</title>") {
		t.Errorf("expected default title tinystore, got: %s", rec.Body.String())
	}
}

func TestHandleDashboard_NoAssets(t *testing.T) {
	srv := dashboardServer(nil, "Custom Title")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestHandleDashboard_NonRootPath(t *testing.T) {
	srv := dashboardServer(&mockFS{content: "<title>{{.Title}}</title>"}, "")

	req := httptest.NewRequest(http.MethodGet, "/other", nil)
	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for non-root path, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHandleDashboard_TitleWithHTMLChars(t *testing.T) {
	srv := dashboardServer(&mockFS{content: "<title>{{.Title}}</title>"}, "<script>alert('xss')</script>")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("title should be HTML-escaped to prevent XSS")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("expected escaped HTML, got: %s", body)
	}
}
