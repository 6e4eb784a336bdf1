// Package model defines the narrow interface the prediction pipeline uses to
// score an encoded at-bat, and the implementations that back it: a boosted
// decision-tree artifact evaluated in-process, and a remote inference
// endpoint.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Binary class labels.
const (
	LabelMiss    = 0
	LabelHomeRun = 1
)

// Score is a classifier's verdict for one feature vector.
type Score struct {
	Label         int
	Probabilities []float64 // indexed by class label
}

// Confidence is the probability of the predicted class, i.e. the largest
// entry of Probabilities. It is not the home-run probability unless the
// predicted label is LabelHomeRun.
func (s Score) Confidence() float64 {
	best := 0.0
	for _, p := range s.Probabilities {
		if p > best {
			best = p
		}
	}
	return best
}

// Classifier scores ordered feature vectors. Features returns the exact
// order Score expects.
type Classifier interface {
	Kind() string
	Features() []string
	Score(ctx context.Context, features []float64) (Score, error)
}

// ErrInvalidScore is returned when a classifier's output violates the binary
// contract: label outside {0,1}, a probability outside [0,1], or a
// distribution that does not sum to one.
var ErrInvalidScore = errors.New("invalid classifier output")

const probabilityTolerance = 1e-6

// Validate checks a Score against the binary classification contract.
func (s Score) Validate() error {
	if s.Label != LabelMiss && s.Label != LabelHomeRun {
		return fmt.Errorf("%w: label %d", ErrInvalidScore, s.Label)
	}
	if len(s.Probabilities) != 2 {
		return fmt.Errorf("%w: %d probabilities, want 2", ErrInvalidScore, len(s.Probabilities))
	}
	sum := 0.0
	for _, p := range s.Probabilities {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: probability %v outside [0,1]", ErrInvalidScore, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return fmt.Errorf("%w: probabilities sum to %v", ErrInvalidScore, sum)
	}
	return nil
}
