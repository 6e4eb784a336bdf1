// Package prediction turns a scenario index and a user's swing into a
// home-run verdict: it patches the scenario's encoded row with the swing and
// scores it with the classifier.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"atbat/internal/dataset"
	"atbat/internal/features"
	"atbat/internal/model"
	"atbat/internal/types"
)

// Result is the outcome of one prediction.
type Result struct {
	HomeRun       bool      `json:"home_run"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities"`
}

// Outcome maps the verdict onto a session outcome.
func (r Result) Outcome() types.Outcome {
	if r.HomeRun {
		return types.OutcomeHit
	}
	return types.OutcomeMiss
}

// Encoder is the subset of features.Encoder the service needs.
type Encoder interface {
	Schema() *features.Schema
	Encode(i int) (features.Row, error)
}

// Service scores swings against scenarios. It holds no mutable state and is
// safe for concurrent use.
type Service struct {
	encoder    Encoder
	classifier model.Classifier
	order      []string
	logger     *slog.Logger
}

// NewService pins the classifier's feature order against the encoder's
// schema. A mismatch is returned as an internal_schema_mismatch error and
// must stop startup.
func NewService(encoder Encoder, classifier model.Classifier, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	order := classifier.Features()
	if err := encoder.Schema().Validate(order); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalSchemaMismatch,
			"classifier features do not match the encoded dataset", err)
	}
	return &Service{
		encoder:    encoder,
		classifier: classifier,
		order:      order,
		logger:     logger,
	}, nil
}

// Features returns the ordered feature list used for scoring.
func (s *Service) Features() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ClassifierKind reports which classifier implementation is in use.
func (s *Service) ClassifierKind() string {
	return s.classifier.Kind()
}

// Predict scores swing against scenario index.
//
// Confidence is the probability of whichever class was predicted, so a
// confident miss reports a high confidence too.
func (s *Service) Predict(ctx context.Context, index int, swing types.Swing) (Result, error) {
	bearingCol, err := checkSwing(swing)
	if err != nil {
		return Result{}, err
	}

	row, err := s.encoder.Encode(index)
	if err != nil {
		if errors.Is(err, dataset.ErrIndexOutOfRange) {
			return Result{}, types.NewAppErrorWithDetails(types.ErrCodeNotFoundScenario,
				"scenario not found", err, map[string]any{"index": index})
		}
		return Result{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode scenario", err)
	}

	if err := patch(row, swing, bearingCol); err != nil {
		return Result{}, types.NewAppError(types.ErrCodeInternalSchemaMismatch,
			"encoded row is missing a swing feature", err)
	}

	vector, err := row.Vector(s.order)
	if err != nil {
		return Result{}, types.NewAppError(types.ErrCodeInternalSchemaMismatch,
			"encoded row is missing a classifier feature", err)
	}

	score, err := s.classifier.Score(ctx, vector)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return Result{}, err
		}
		return Result{}, types.NewAppError(types.ErrCodeInternalModel, "classifier failed", err)
	}
	if err := score.Validate(); err != nil {
		return Result{}, types.NewAppError(types.ErrCodeInternalModel, "classifier returned an invalid score", err)
	}

	result := Result{
		HomeRun:       score.Label == model.LabelHomeRun,
		Confidence:    score.Confidence(),
		Probabilities: score.Probabilities,
	}
	s.logger.DebugContext(ctx, "swing scored",
		"scenario_index", index,
		"launch_speed", swing.LaunchSpeed,
		"launch_angle", swing.LaunchAngle,
		"bearing", swing.Bearing,
		"home_run", result.HomeRun,
		"confidence", result.Confidence,
	)
	return result, nil
}

// checkSwing rejects values no encoder could use. Slider bounds are enforced
// where the swing enters the system, not here.
func checkSwing(swing types.Swing) (string, error) {
	if math.IsNaN(swing.LaunchSpeed) || math.IsInf(swing.LaunchSpeed, 0) {
		return "", types.NewAppError(types.ErrCodeValidationLaunchSpeed, "launch speed must be a finite number", nil)
	}
	if math.IsNaN(swing.LaunchAngle) || math.IsInf(swing.LaunchAngle, 0) {
		return "", types.NewAppError(types.ErrCodeValidationLaunchAngle, "launch angle must be a finite number", nil)
	}
	b, ok := types.ParseBearing(string(swing.Bearing))
	if !ok {
		return "", types.NewAppErrorWithDetails(types.ErrCodeValidationBearing,
			"bearing must be one of Left, Center, Right", nil,
			map[string]any{"bearing": string(swing.Bearing)})
	}
	return features.BearingColumn(b), nil
}

// patch overwrites the swing features and sets exactly one bearing flag.
func patch(row features.Row, swing types.Swing, bearingCol string) error {
	if err := row.Set(features.LaunchSpeed, swing.LaunchSpeed); err != nil {
		return err
	}
	if err := row.Set(features.LaunchAngle, swing.LaunchAngle); err != nil {
		return err
	}
	for _, b := range types.Bearings {
		col := features.BearingColumn(b)
		if err := row.SetBool(col, col == bearingCol); err != nil {
			return fmt.Errorf("bearing %s: %w", b, err)
		}
	}
	return nil
}
