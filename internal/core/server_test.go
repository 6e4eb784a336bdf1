package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"atbat/internal/config"
)

// mockMetricsCollector implements MetricsCollector and Flusher for testing.
type mockMetricsCollector struct {
	mu      sync.Mutex
	calls   []metricsCall
	flushed int
}

type metricsCall struct {
	method, route string
	status        int
	duration      time.Duration
}

func (m *mockMetricsCollector) RecordRequest(method, route string, status int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricsCall{method, route, status, duration})
}

func (m *mockMetricsCollector) Flush(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed++
}

func (m *mockMetricsCollector) recorded() []metricsCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]metricsCall(nil), m.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNewServer_Success(t *testing.T) {
	cfg := &config.Config{Environment: "local"}
	logger := discardLogger()

	srv, err := NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer returned unexpected error: %v", err)
	}
	if srv.Config != cfg {
		t.Error("Config field not set correctly")
	}
	if srv.Logger != logger {
		t.Error("Logger field not set correctly")
	}
	if srv.Validator == nil {
		t.Error("Validator should be initialized by constructor")
	}
	if srv.Router() == nil || srv.Handler() == nil {
		t.Error("router should be initialized by constructor")
	}
}

func TestNewServer_NilArguments(t *testing.T) {
	if _, err := NewServer(nil, discardLogger()); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewServer(&config.Config{}, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestShutdown_FlushesMetricsAndRunsClosers(t *testing.T) {
	srv, _ := NewServer(&config.Config{}, discardLogger())
	mc := &mockMetricsCollector{}
	srv.Metrics = mc

	var closed []string
	srv.Closers = []func() error{
		func() error { closed = append(closed, "store"); return nil },
		func() error { closed = append(closed, "publisher"); return nil },
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if mc.flushed != 1 {
		t.Errorf("expected 1 flush, got %d", mc.flushed)
	}
	if len(closed) != 2 || closed[0] != "store" || closed[1] != "publisher" {
		t.Errorf("closers ran as %v", closed)
	}
}

func TestShutdown_ReportsFirstCloserError(t *testing.T) {
	srv, _ := NewServer(&config.Config{}, discardLogger())
	boom := errors.New("pool already closed")

	ranSecond := false
	srv.Closers = []func() error{
		func() error { return boom },
		func() error { ranSecond = true; return nil },
	}

	err := srv.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped closer error, got %v", err)
	}
	if !ranSecond {
		t.Error("a failing closer must not stop the remaining closers")
	}
}

func TestShutdown_NoMetrics(t *testing.T) {
	srv, _ := NewServer(&config.Config{}, discardLogger())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}
