package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"atbat/internal/prediction"
	"atbat/internal/types"
)

// --- Mock Predictor ---

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, index int, swing types.Swing) (prediction.Result, error) {
	args := m.Called(ctx, index, swing)
	return args.Get(0).(prediction.Result), args.Error(1)
}

// --- Recording sink ---

type recordingSink struct {
	sessions []*Session
	results  []prediction.Result
}

func (r *recordingSink) RecordResolution(_ context.Context, s *Session, res prediction.Result) {
	r.sessions = append(r.sessions, s.Clone())
	r.results = append(r.results, res)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("sess-%d", n)
	}
}

func newTestManager(t *testing.T, total int, policy AdvancePolicy) (*Manager, *mockPredictor, *recordingSink, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(0)
	pred := new(mockPredictor)
	sink := &recordingSink{}
	m := NewManager(store, pred, total, policy,
		WithClock(fixedClock{t0}),
		WithIDGenerator(sequentialIDs()),
		WithSinks(sink),
	)
	return m, pred, sink, store
}

func TestManager_Start(t *testing.T) {
	m, _, _, store := newTestManager(t, 10, AdvanceWrap)

	s, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, 0, s.ScenarioIndex)
	assert.Equal(t, StateAwaitingInput, s.State())
	assert.Equal(t, 1, store.Len())
}

func TestManager_Start_UsesUUIDByDefault(t *testing.T) {
	m := NewManager(NewMemoryStore(0), new(mockPredictor), 10, AdvanceWrap)
	s, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.ID, 36)
}

func TestManager_Swing_HomeRun(t *testing.T) {
	m, pred, sink, _ := newTestManager(t, 10, AdvanceWrap)
	ctx := context.Background()

	s, err := m.Start(ctx)
	require.NoError(t, err)

	pred.On("Predict", mock.Anything, 0, centerSwing).
		Return(prediction.Result{HomeRun: true, Confidence: 0.8, Probabilities: []float64{0.2, 0.8}}, nil).Once()

	got, res, err := m.Swing(ctx, s.ID, centerSwing)
	require.NoError(t, err)
	assert.True(t, res.HomeRun)
	assert.Equal(t, StateResolvedHit, got.State())
	assert.Equal(t, 0.8, got.Confidence)
	assert.Equal(t, BannerHomeRun, got.Banner())

	stored, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateResolvedHit, stored.State())

	require.Len(t, sink.sessions, 1)
	assert.Equal(t, s.ID, sink.sessions[0].ID)
	assert.Equal(t, 0.8, sink.results[0].Confidence)
	pred.AssertExpectations(t)
}

func TestManager_Swing_PassesSessionIDInContext(t *testing.T) {
	m, pred, _, _ := newTestManager(t, 10, AdvanceWrap)
	ctx := context.Background()
	s, err := m.Start(ctx)
	require.NoError(t, err)

	pred.On("Predict", mock.MatchedBy(func(ctx context.Context) bool {
		return types.GetSessionID(ctx) == s.ID
	}), 0, centerSwing).Return(prediction.Result{Confidence: 0.6, Probabilities: []float64{0.6, 0.4}}, nil)

	_, _, err = m.Swing(ctx, s.ID, centerSwing)
	require.NoError(t, err)
	pred.AssertExpectations(t)
}

func TestManager_Swing_AlreadyResolved(t *testing.T) {
	m, pred, sink, _ := newTestManager(t, 10, AdvanceWrap)
	ctx := context.Background()
	s, err := m.Start(ctx)
	require.NoError(t, err)

	pred.On("Predict", mock.Anything, 0, centerSwing).
		Return(prediction.Result{Confidence: 0.7, Probabilities: []float64{0.7, 0.3}}, nil).Once()

	_, _, err = m.Swing(ctx, s.ID, centerSwing)
	require.NoError(t, err)

	_, _, err = m.Swing(ctx, s.ID, centerSwing)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeConflictAlreadyResolved, types.CodeOf(err))
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Len(t, sink.sessions, 1)
	pred.AssertNumberOfCalls(t, "Predict", 1)
}

func TestManager_Swing_PredictionErrorLeavesSessionAwaiting(t *testing.T) {
	m, pred, sink, _ := newTestManager(t, 10, AdvanceWrap)
	ctx := context.Background()
	s, err := m.Start(ctx)
	require.NoError(t, err)

	upstream := types.NewAppError(types.ErrCodeUpstreamModel, "inference endpoint returned 503", errors.New("503"))
	pred.On("Predict", mock.Anything, 0, centerSwing).Return(prediction.Result{}, upstream)

	_, _, err = m.Swing(ctx, s.ID, centerSwing)
	assert.Equal(t, types.ErrCodeUpstreamModel, types.CodeOf(err))

	stored, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingInput, stored.State())
	assert.Empty(t, sink.sessions)
}

func TestManager_Swing_UnknownSession(t *testing.T) {
	m, pred, _, _ := newTestManager(t, 10, AdvanceWrap)

	_, _, err := m.Swing(context.Background(), "nope", centerSwing)
	assert.Equal(t, types.ErrCodeNotFoundSession, types.CodeOf(err))
	pred.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_NextAtBat_FromResolvedMiss(t *testing.T) {
	m, pred, _, store := newTestManager(t, 10, AdvanceWrap)
	ctx := context.Background()
	s, err := m.Start(ctx)
	require.NoError(t, err)

	// Move the stored session to scenario 5.
	stored, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	stored.ScenarioIndex = 5
	require.NoError(t, store.Update(ctx, stored))

	pred.On("Predict", mock.Anything, 5, centerSwing).
		Return(prediction.Result{HomeRun: false, Confidence: 0.9, Probabilities: []float64{0.9, 0.1}}, nil)
	resolved, _, err := m.Swing(ctx, s.ID, centerSwing)
	require.NoError(t, err)
	require.Equal(t, StateResolvedMiss, resolved.State())

	next, err := m.NextAtBat(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingInput, next.State())
	assert.Equal(t, 6, next.ScenarioIndex)
	assert.Equal(t, 0.0, next.Confidence)
}

func TestManager_NextAtBat_Policies(t *testing.T) {
	ctx := context.Background()

	wrap, _, _, _ := newTestManager(t, 2, AdvanceWrap)
	s, err := wrap.Start(ctx)
	require.NoError(t, err)
	for _, want := range []int{1, 0, 1} {
		s, err = wrap.NextAtBat(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, want, s.ScenarioIndex)
	}

	clamp, _, _, _ := newTestManager(t, 2, AdvanceClamp)
	s, err = clamp.Start(ctx)
	require.NoError(t, err)
	for _, want := range []int{1, 1, 1} {
		s, err = clamp.NextAtBat(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, want, s.ScenarioIndex)
	}
}

func TestManager_NextAtBat_UnknownSession(t *testing.T) {
	m, _, _, _ := newTestManager(t, 10, AdvanceWrap)
	_, err := m.NextAtBat(context.Background(), "nope")
	assert.Equal(t, types.ErrCodeNotFoundSession, types.CodeOf(err))
}

// conflictingStore fails the first n updates with a version conflict.
type conflictingStore struct {
	*MemoryStore
	conflicts int
}

func (c *conflictingStore) Update(ctx context.Context, s *Session) error {
	if c.conflicts > 0 {
		c.conflicts--
		return ErrVersionConflict
	}
	return c.MemoryStore.Update(ctx, s)
}

func TestManager_NextAtBat_RetriesConflicts(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{MemoryStore: NewMemoryStore(0), conflicts: 2}
	m := NewManager(store, new(mockPredictor), 10, AdvanceWrap, WithIDGenerator(sequentialIDs()))

	s, err := m.Start(ctx)
	require.NoError(t, err)
	next, err := m.NextAtBat(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next.ScenarioIndex)

	store.conflicts = maxUpdateAttempts
	_, err = m.NextAtBat(ctx, s.ID)
	assert.Equal(t, types.ErrCodeConflictSessionModified, types.CodeOf(err))
}

func TestManager_End(t *testing.T) {
	m, _, _, store := newTestManager(t, 10, AdvanceWrap)
	ctx := context.Background()
	s, err := m.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, m.End(ctx, s.ID))
	assert.Equal(t, 0, store.Len())

	err = m.End(ctx, s.ID)
	assert.Equal(t, types.ErrCodeNotFoundSession, types.CodeOf(err))
}

type failingStore struct{ *MemoryStore }

func (failingStore) Get(context.Context, string) (*Session, error) {
	return nil, errors.New("connection refused")
}

func TestManager_StoreFailure(t *testing.T) {
	m := NewManager(failingStore{NewMemoryStore(0)}, new(mockPredictor), 10, AdvanceWrap)
	_, err := m.Get(context.Background(), "x")
	assert.Equal(t, types.ErrCodeInternalSessionStore, types.CodeOf(err))
}
