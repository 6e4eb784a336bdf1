package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"atbat/internal/types"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	features    []string
	scoreStatus int
	scoreBody   string
	scoreCalls  atomic.Int32

	mu          sync.Mutex
	lastPayload []any
	lastReqID   string
}

func (f *fakeEndpoint) last() ([]any, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPayload, f.lastReqID
}

func (f *fakeEndpoint) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metadata", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"kind": "adaboost", "features": f.features})
	})
	mux.HandleFunc("POST /score", func(w http.ResponseWriter, r *http.Request) {
		f.scoreCalls.Add(1)
		var body struct {
			Features []any `json:"features"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastPayload = body.Features
		f.lastReqID = r.Header.Get("X-Request-Id")
		f.mu.Unlock()

		status := f.scoreStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		w.Write([]byte(f.scoreBody))
	})
	return mux
}

func newFakeServer(t *testing.T, f *fakeEndpoint) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRemoteScorer_FetchesFeatures(t *testing.T) {
	f := &fakeEndpoint{features: []string{"launch_speed", "launch_angle"}}
	srv := newFakeServer(t, f)

	s, err := NewRemoteScorer(context.Background(), srv.URL+"/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, KindRemote, s.Kind())
	assert.Equal(t, []string{"launch_speed", "launch_angle"}, s.Features())
}

func TestNewRemoteScorer_EmptyFeatures(t *testing.T) {
	srv := newFakeServer(t, &fakeEndpoint{})

	_, err := NewRemoteScorer(context.Background(), srv.URL, time.Second)
	assert.Error(t, err)
}

func TestNewRemoteScorer_EmptyURL(t *testing.T) {
	_, err := NewRemoteScorer(context.Background(), "", time.Second)
	assert.Error(t, err)
}

func TestRemoteScorer_Score(t *testing.T) {
	f := &fakeEndpoint{
		features:  []string{"launch_speed", "pitch_mph"},
		scoreBody: `{"label": 1, "probabilities": [0.2, 0.8]}`,
	}
	srv := newFakeServer(t, f)

	s, err := NewRemoteScorer(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)

	ctx := types.WithRequestID(context.Background(), "req-42")
	score, err := s.Score(ctx, []float64{110, math.NaN()})
	require.NoError(t, err)
	assert.Equal(t, 1, score.Label)
	assert.Equal(t, []float64{0.2, 0.8}, score.Probabilities)

	// NaN travels as null.
	payload, reqID := f.last()
	require.Len(t, payload, 2)
	assert.Equal(t, 110.0, payload[0])
	assert.Nil(t, payload[1])
	assert.Equal(t, "req-42", reqID)
}

func TestRemoteScorer_Score_WrongLength(t *testing.T) {
	f := &fakeEndpoint{features: []string{"a", "b"}}
	srv := newFakeServer(t, f)

	s, err := NewRemoteScorer(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)

	_, err = s.Score(context.Background(), []float64{1})
	assert.Error(t, err)
	assert.Equal(t, int32(0), f.scoreCalls.Load())
}

func TestRemoteScorer_Score_ServerErrorNotRetried(t *testing.T) {
	f := &fakeEndpoint{features: []string{"a"}, scoreStatus: http.StatusInternalServerError}
	srv := newFakeServer(t, f)

	s, err := NewRemoteScorer(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)

	_, err = s.Score(context.Background(), []float64{1})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamModel, types.CodeOf(err))
	assert.Equal(t, int32(1), f.scoreCalls.Load())
}

func TestRemoteScorer_Score_ClientError(t *testing.T) {
	f := &fakeEndpoint{features: []string{"a"}, scoreStatus: http.StatusUnprocessableEntity, scoreBody: `{}`}
	srv := newFakeServer(t, f)

	s, err := NewRemoteScorer(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)

	_, err = s.Score(context.Background(), []float64{1})
	assert.Equal(t, types.ErrCodeUpstreamModel, types.CodeOf(err))
}

func TestRemoteScorer_Score_MalformedResponse(t *testing.T) {
	f := &fakeEndpoint{features: []string{"a"}, scoreBody: `not json`}
	srv := newFakeServer(t, f)

	s, err := NewRemoteScorer(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)

	_, err = s.Score(context.Background(), []float64{1})
	assert.Equal(t, types.ErrCodeUpstreamModel, types.CodeOf(err))
}

func TestRemoteScorer_BreakerOpens(t *testing.T) {
	f := &fakeEndpoint{features: []string{"a"}, scoreStatus: http.StatusServiceUnavailable}
	srv := newFakeServer(t, f)

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "test",
		Timeout: time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})
	s, err := NewRemoteScorer(context.Background(), srv.URL, time.Second, WithBreaker(cb))
	require.NoError(t, err)
	require.NoError(t, s.Ready(context.Background()))

	for i := 0; i < 2; i++ {
		_, err = s.Score(context.Background(), []float64{1})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Error(t, s.Ready(context.Background()))

	_, err = s.Score(context.Background(), []float64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, types.ErrCodeUpstreamModel, types.CodeOf(err))
	assert.Equal(t, int32(2), f.scoreCalls.Load())
}
