package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_Confidence(t *testing.T) {
	assert.InDelta(t, 0.8, Score{Label: 1, Probabilities: []float64{0.2, 0.8}}.Confidence(), 1e-12)
	assert.InDelta(t, 0.7, Score{Label: 0, Probabilities: []float64{0.7, 0.3}}.Confidence(), 1e-12)
	assert.Equal(t, 0.0, Score{}.Confidence())
}

func TestScore_Validate(t *testing.T) {
	tests := []struct {
		name    string
		score   Score
		wantErr bool
	}{
		{"valid home run", Score{Label: 1, Probabilities: []float64{0.2, 0.8}}, false},
		{"valid miss", Score{Label: 0, Probabilities: []float64{1, 0}}, false},
		{"label out of range", Score{Label: 2, Probabilities: []float64{0.2, 0.8}}, true},
		{"negative label", Score{Label: -1, Probabilities: []float64{0.2, 0.8}}, true},
		{"probability above one", Score{Label: 1, Probabilities: []float64{-0.2, 1.2}}, true},
		{"does not sum to one", Score{Label: 1, Probabilities: []float64{0.3, 0.8}}, true},
		{"NaN probability", Score{Label: 1, Probabilities: []float64{math.NaN(), 0.8}}, true},
		{"wrong arity", Score{Label: 1, Probabilities: []float64{1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.score.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidScore)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
