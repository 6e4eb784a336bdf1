package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"atbat/internal/prediction"
	"atbat/internal/types"
)

// maxUpdateAttempts bounds the read-modify-write loop for NextAtBat.
const maxUpdateAttempts = 3

// Predictor scores a swing against a scenario.
type Predictor interface {
	Predict(ctx context.Context, index int, swing types.Swing) (prediction.Result, error)
}

// ResolutionSink is notified after a swing has been stored. Sinks are best
// effort: they must not block for long and their failures are theirs to log.
type ResolutionSink interface {
	RecordResolution(ctx context.Context, s *Session, result prediction.Result)
}

// Manager runs the session controller on top of a Store.
type Manager struct {
	store     Store
	predictor Predictor
	total     int
	policy    AdvancePolicy
	clock     types.Clock
	newID     func() string
	sinks     []ResolutionSink
	logger    *slog.Logger
}

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source.
func WithClock(c types.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) { m.newID = fn }
}

// WithSinks registers resolution sinks, called in order.
func WithSinks(sinks ...ResolutionSink) ManagerOption {
	return func(m *Manager) { m.sinks = append(m.sinks, sinks...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a controller over total scenarios.
func NewManager(store Store, predictor Predictor, total int, policy AdvancePolicy, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		predictor: predictor,
		total:     total,
		policy:    policy,
		clock:     types.RealClock{},
		newID:     uuid.NewString,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a session on scenario 0.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	s := New(m.newID(), m.clock.Now())
	if err := m.store.Create(ctx, s); err != nil {
		return nil, storeError(err, s.ID)
	}
	m.logger.InfoContext(ctx, "session started", "session_id", s.ID)
	return s, nil
}

// Get returns the current state of a session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	return s, nil
}

// Swing scores the swing against the session's current scenario and
// resolves the at-bat. A second swing on the same at-bat is a conflict.
func (m *Manager) Swing(ctx context.Context, id string, swing types.Swing) (*Session, prediction.Result, error) {
	ctx = types.WithSessionID(ctx, id)

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, prediction.Result{}, storeError(err, id)
	}
	if s.State() != StateAwaitingInput {
		return nil, prediction.Result{}, alreadyResolved(s)
	}

	result, err := m.predictor.Predict(ctx, s.ScenarioIndex, swing)
	if err != nil {
		return nil, prediction.Result{}, err
	}

	if err := s.Resolve(result.Outcome(), result.Confidence, swing, m.clock.Now()); err != nil {
		if errors.Is(err, ErrAlreadyResolved) {
			return nil, prediction.Result{}, alreadyResolved(s)
		}
		return nil, prediction.Result{}, types.NewAppError(types.ErrCodeInternalModel, "prediction could not be recorded", err)
	}
	if err := m.store.Update(ctx, s); err != nil {
		return nil, prediction.Result{}, storeError(err, id)
	}

	m.logger.InfoContext(ctx, "at-bat resolved",
		"session_id", id,
		"scenario_index", s.ScenarioIndex,
		"outcome", s.Outcome,
		"confidence", s.Confidence,
	)
	for _, sink := range m.sinks {
		sink.RecordResolution(ctx, s, result)
	}
	return s, result, nil
}

// NextAtBat advances the session to the next scenario. Concurrent writers
// are resolved by re-reading and re-applying the advance.
func (m *Manager) NextAtBat(ctx context.Context, id string) (*Session, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		s, err := m.store.Get(ctx, id)
		if err != nil {
			return nil, storeError(err, id)
		}
		if err := s.NextAtBat(m.total, m.policy, m.clock.Now()); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "cannot advance scenario", err)
		}
		err = m.store.Update(ctx, s)
		if err == nil {
			m.logger.DebugContext(ctx, "next at-bat", "session_id", id, "scenario_index", s.ScenarioIndex)
			return s, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, storeError(err, id)
		}
		lastErr = err
	}
	return nil, storeError(lastErr, id)
}

// End deletes a session.
func (m *Manager) End(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return storeError(err, id)
	}
	m.logger.InfoContext(ctx, "session ended", "session_id", id)
	return nil
}

func alreadyResolved(s *Session) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeConflictAlreadyResolved,
		"this at-bat is already resolved; request the next at-bat", ErrAlreadyResolved,
		map[string]any{"outcome": s.Outcome, "scenario_index": s.ScenarioIndex})
}

func storeError(err error, id string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return types.NewAppErrorWithDetails(types.ErrCodeNotFoundSession, "session not found", err,
			map[string]any{"session_id": id})
	case errors.Is(err, ErrVersionConflict):
		return types.NewAppError(types.ErrCodeConflictSessionModified,
			"session was modified by another request; retry", err)
	default:
		return types.NewAppError(types.ErrCodeInternalSessionStore, "session store failure", err)
	}
}
