package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"atbat/internal/types"

	"github.com/sony/gobreaker/v2"
)

// KindRemote identifies a classifier served by an HTTP inference endpoint.
const KindRemote = "remote"

// maxResponseBytes bounds how much of an inference response is read.
const maxResponseBytes = 1 << 20

// RemoteScorer scores feature vectors through an HTTP inference endpoint.
//
// The endpoint exposes:
//
//	GET  {base}/metadata  -> {"kind": "...", "features": ["...", ...]}
//	POST {base}/score     <- {"features": [1.0, null, ...]}
//	                      -> {"label": 1, "probabilities": [0.2, 0.8]}
//
// Absent values (NaN) travel as JSON null. Every call runs through a circuit
// breaker and is never retried; a swing is a one-shot user action.
type RemoteScorer struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	baseURL   string
	userAgent string
	features  []string
}

// RemoteOption is a functional option for configuring a RemoteScorer.
type RemoteOption func(*RemoteScorer)

// WithBreaker replaces the default circuit breaker, e.g. to share one
// across scorers or to use tighter trip settings in tests.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) RemoteOption {
	return func(s *RemoteScorer) {
		s.breaker = cb
	}
}

// WithUserAgent sets the User-Agent header on outbound requests.
func WithUserAgent(ua string) RemoteOption {
	return func(s *RemoteScorer) {
		s.userAgent = ua
	}
}

// NewBreaker returns the circuit breaker settings used for inference calls.
func NewBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// NewRemoteScorer fetches the endpoint's feature list and returns a scorer
// bound to it. timeout applies to each request.
func NewRemoteScorer(ctx context.Context, baseURL string, timeout time.Duration, opts ...RemoteOption) (*RemoteScorer, error) {
	if baseURL == "" {
		return nil, errors.New("model: endpoint URL must not be empty")
	}
	s := &RemoteScorer{
		client:  &http.Client{Timeout: timeout},
		breaker: NewBreaker("model-endpoint"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}

	var meta struct {
		Kind     string   `json:"kind"`
		Features []string `json:"features"`
	}
	if err := s.call(ctx, http.MethodGet, "/metadata", nil, &meta); err != nil {
		return nil, fmt.Errorf("model: fetching endpoint metadata: %w", err)
	}
	if len(meta.Features) == 0 {
		return nil, errors.New("model: endpoint reported an empty feature list")
	}
	s.features = meta.Features
	return s, nil
}

// Kind implements Classifier.
func (s *RemoteScorer) Kind() string {
	return KindRemote
}

// Features implements Classifier.
func (s *RemoteScorer) Features() []string {
	out := make([]string, len(s.features))
	copy(out, s.features)
	return out
}

// Ready reports an error while the circuit breaker is open.
func (s *RemoteScorer) Ready(context.Context) error {
	if s.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("model: circuit %q is open", s.breaker.Name())
	}
	return nil
}

// Score implements Classifier.
func (s *RemoteScorer) Score(ctx context.Context, x []float64) (Score, error) {
	if len(x) != len(s.features) {
		return Score{}, fmt.Errorf("model: got %d features, want %d", len(x), len(s.features))
	}

	payload := make([]*float64, len(x))
	for i := range x {
		if !math.IsNaN(x[i]) {
			v := x[i]
			payload[i] = &v
		}
	}
	body, err := json.Marshal(map[string]any{"features": payload})
	if err != nil {
		return Score{}, fmt.Errorf("model: encoding request: %w", err)
	}

	var out struct {
		Label         int       `json:"label"`
		Probabilities []float64 `json:"probabilities"`
	}
	if err := s.call(ctx, http.MethodPost, "/score", body, &out); err != nil {
		return Score{}, err
	}
	return Score{Label: out.Label, Probabilities: out.Probabilities}, nil
}

// call executes one request through the breaker and decodes a 2xx JSON body
// into dst. Non-2xx responses and breaker rejections map to an upstream
// AppError.
func (s *RemoteScorer) call(ctx context.Context, method, path string, body []byte, dst any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rd)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalModel, "failed to build inference request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reqID := types.GetRequestID(ctx); reqID != "" {
		req.Header.Set("X-Request-Id", reqID)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.breaker.Execute(func() (*http.Response, error) {
		r, doErr := s.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx and 429 count against the breaker.
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return s.mapError(resp, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewAppError(types.ErrCodeUpstreamModel,
			fmt.Sprintf("inference endpoint returned %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamModel, "malformed inference response", err)
	}
	return nil
}

func (s *RemoteScorer) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamModel,
			"circuit breaker is open; inference endpoint unavailable", err)
	}
	if resp != nil {
		return types.NewAppError(types.ErrCodeUpstreamModel,
			fmt.Sprintf("inference endpoint returned %d", resp.StatusCode), err)
	}
	return types.NewAppError(types.ErrCodeUpstreamModel, "inference request failed", err)
}
