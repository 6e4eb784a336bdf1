package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole /health request. Probes still running
// at the deadline are reported as timed out.
const healthCheckTimeout = 2 * time.Second

// Health statuses, overall and per component.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthProbe checks one dependency (dataset, model, session store).
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// optionalProbe is implemented by probes whose failure degrades the service
// without taking it out of rotation. Probes that do not implement it are
// critical.
type optionalProbe interface {
	Optional() bool
}

// NewProbe adapts a check function into a critical HealthProbe.
func NewProbe(name string, check func(ctx context.Context) error) HealthProbe {
	return funcProbe{name: name, check: check}
}

// NewOptionalProbe adapts a check function into a HealthProbe whose failure
// reports "degraded" with status 200. The remote model's breaker uses it:
// scenarios can still be browsed while swings fail fast.
func NewOptionalProbe(name string, check func(ctx context.Context) error) HealthProbe {
	return funcProbe{name: name, check: check, optional: true}
}

type funcProbe struct {
	name     string
	check    func(ctx context.Context) error
	optional bool
}

func (p funcProbe) Name() string                    { return p.name }
func (p funcProbe) Check(ctx context.Context) error { return p.check(ctx) }
func (p funcProbe) Optional() bool                  { return p.optional }

type componentStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type probeResult struct {
	index   int
	err     error
	latency time.Duration
}

// HandleHealth handles GET /health. All probes run concurrently under one
// deadline. Any critical failure or timeout answers 503 "unhealthy"; failures
// of optional probes only answer 200 "degraded".
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: StatusHealthy}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
	}

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	// Buffered so late probes never block after the handler returns.
	results := make(chan probeResult, len(probes))
	for i, p := range probes {
		go func() {
			start := time.Now()
			err := runProbe(ctx, p)
			results <- probeResult{index: i, err: err, latency: time.Since(start)}
		}()
	}

	done := make([]*probeResult, len(probes))
	for pending := len(probes); pending > 0; pending-- {
		select {
		case res := <-results:
			done[res.index] = &res
		case <-ctx.Done():
			pending = 0
		}
	}

	resp.Components = make(map[string]componentStatus, len(probes))
	for i, p := range probes {
		optional := isOptional(p)
		c := componentStatus{Status: StatusHealthy}
		switch res := done[i]; {
		case res == nil:
			c = componentStatus{Status: StatusUnhealthy, Message: "health check timed out"}
			resp.Status = StatusUnhealthy
		case res.err != nil:
			c.Status, c.Message = StatusUnhealthy, res.err.Error()
			if optional {
				c.Status = StatusDegraded
			}
			resp.Status = worse(resp.Status, c.Status)
			c.LatencyMS = res.latency.Milliseconds()
		default:
			c.LatencyMS = res.latency.Milliseconds()
		}
		resp.Components[p.Name()] = c
	}

	status := http.StatusOK
	if resp.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

// runProbe converts a probe panic into a failure.
func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}

func isOptional(p HealthProbe) bool {
	o, ok := p.(optionalProbe)
	return ok && o.Optional()
}

func worse(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
