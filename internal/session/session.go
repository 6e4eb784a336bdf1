// Package session tracks one player's progress through the scenario table:
// which at-bat they are facing, and how their last swing resolved.
package session

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"atbat/internal/types"
)

// State is the controller state derived from a session's outcome.
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateResolvedHit   State = "resolved_hit"
	StateResolvedMiss  State = "resolved_miss"
)

// Result banners shown once a swing resolves.
const (
	BannerHomeRun  = "HOME RUN!!!"
	BannerTryAgain = "TRY AGAIN"
)

var (
	// ErrAlreadyResolved is returned when a second swing is submitted for
	// the same at-bat.
	ErrAlreadyResolved = errors.New("at-bat already resolved")
	// ErrInvalidOutcome is returned when Resolve is given anything other
	// than hit or miss.
	ErrInvalidOutcome = errors.New("invalid outcome")
	// ErrEmptyTable is returned when advancing over a table with no rows.
	ErrEmptyTable = errors.New("scenario table is empty")
)

// AdvancePolicy decides what happens when NextAtBat moves past the last
// scenario.
type AdvancePolicy string

const (
	// AdvanceWrap restarts from scenario 0.
	AdvanceWrap AdvancePolicy = "wrap"
	// AdvanceClamp keeps serving the last scenario.
	AdvanceClamp AdvancePolicy = "clamp"
)

// ParseAdvancePolicy accepts "wrap" or "clamp" in any case.
func ParseAdvancePolicy(s string) (AdvancePolicy, error) {
	switch p := AdvancePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case AdvanceWrap, AdvanceClamp:
		return p, nil
	}
	return "", fmt.Errorf("unknown advance policy %q (want wrap or clamp)", s)
}

// Next returns the index following current in a table of total rows.
func (p AdvancePolicy) Next(current, total int) (int, error) {
	if total <= 0 {
		return 0, ErrEmptyTable
	}
	next := current + 1
	if next < total {
		return next, nil
	}
	if p == AdvanceClamp {
		return total - 1, nil
	}
	return next % total, nil
}

// Session is the per-player state. Version increments on every stored
// change and guards concurrent writers.
type Session struct {
	ID            string        `json:"id"`
	ScenarioIndex int           `json:"scenario_index"`
	Outcome       types.Outcome `json:"outcome"`
	Confidence    float64       `json:"confidence"`
	LastSwing     *types.Swing  `json:"last_swing,omitempty"`
	Swings        int           `json:"swings"`
	HomeRuns      int           `json:"home_runs"`
	AtBats        int           `json:"at_bats"`
	Version       int64         `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// New returns a session awaiting input on scenario 0.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:            id,
		ScenarioIndex: 0,
		Outcome:       types.OutcomeUnknown,
		AtBats:        1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// State reports the controller state.
func (s *Session) State() State {
	switch s.Outcome {
	case types.OutcomeHit:
		return StateResolvedHit
	case types.OutcomeMiss:
		return StateResolvedMiss
	default:
		return StateAwaitingInput
	}
}

// Banner is the result message for a resolved at-bat, empty while awaiting
// input.
func (s *Session) Banner() string {
	switch s.Outcome {
	case types.OutcomeHit:
		return BannerHomeRun
	case types.OutcomeMiss:
		return BannerTryAgain
	}
	return ""
}

// Resolve records the outcome of a swing on the current at-bat.
func (s *Session) Resolve(outcome types.Outcome, confidence float64, swing types.Swing, now time.Time) error {
	if s.State() != StateAwaitingInput {
		return ErrAlreadyResolved
	}
	if outcome != types.OutcomeHit && outcome != types.OutcomeMiss {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", confidence)
	}

	s.Outcome = outcome
	s.Confidence = confidence
	s.LastSwing = &swing
	s.Swings++
	if outcome == types.OutcomeHit {
		s.HomeRuns++
	}
	s.UpdatedAt = now
	return nil
}

// NextAtBat moves to the next scenario and clears the outcome. It is
// allowed from any state; from AwaitingInput it skips the current at-bat.
func (s *Session) NextAtBat(total int, policy AdvancePolicy, now time.Time) error {
	next, err := policy.Next(s.ScenarioIndex, total)
	if err != nil {
		return err
	}
	s.ScenarioIndex = next
	s.Outcome = types.OutcomeUnknown
	s.Confidence = 0
	s.LastSwing = nil
	s.AtBats++
	s.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.LastSwing != nil {
		sw := *s.LastSwing
		c.LastSwing = &sw
	}
	return &c
}

func outcomeOf(s string) types.Outcome {
	switch o := types.Outcome(s); o {
	case types.OutcomeHit, types.OutcomeMiss:
		return o
	}
	return types.OutcomeUnknown
}
