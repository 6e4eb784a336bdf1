package model

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// KindBoostedTrees identifies the in-process boosted decision-tree model.
const KindBoostedTrees = "boosted_trees"

// leafMarker marks a node without children in the exported tree arrays.
const leafMarker = -1

// Tree is one CART decision tree in the flat array layout used by the
// training export: node i splits on Feature[i] at Threshold[i] and routes
// x <= threshold to ChildrenLeft[i], otherwise to ChildrenRight[i].
type Tree struct {
	ChildrenLeft    []int       `json:"children_left"`
	ChildrenRight   []int       `json:"children_right"`
	Feature         []int       `json:"feature"`
	Threshold       []float64   `json:"threshold"`
	Value           [][]float64 `json:"value"`
	MissingGoToLeft []bool      `json:"missing_go_to_left,omitempty"`
}

func (t *Tree) validate(numFeatures, numClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("tree arrays differ in length")
	}
	if t.MissingGoToLeft != nil && len(t.MissingGoToLeft) != n {
		return errors.New("missing_go_to_left length differs from node count")
	}
	for i := 0; i < n; i++ {
		if len(t.Value[i]) != numClasses {
			return fmt.Errorf("node %d: %d class values, want %d", i, len(t.Value[i]), numClasses)
		}
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leafMarker {
			continue
		}
		// Children always come after their parent in the export, which also
		// rules out cycles.
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if f := t.Feature[i]; f < 0 || f >= numFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, f)
		}
	}
	return nil
}

// predict returns the class index with the largest leaf value.
func (t *Tree) predict(x []float64) int {
	node := 0
	for t.ChildrenLeft[node] != leafMarker {
		v := x[t.Feature[node]]
		var left bool
		if math.IsNaN(v) {
			left = t.MissingGoToLeft != nil && t.MissingGoToLeft[node]
		} else {
			left = v <= t.Threshold[node]
		}
		if left {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return argmax(t.Value[node])
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Ensemble is a discrete (SAMME) boosted ensemble of decision trees over two
// classes. It is immutable after loading and safe for concurrent use.
type Ensemble struct {
	features []string
	trees    []Tree
	weights  []float64
	total    float64
}

// NewEnsemble validates the exported trees and weights.
func NewEnsemble(features []string, trees []Tree, weights []float64) (*Ensemble, error) {
	if len(features) == 0 {
		return nil, errors.New("ensemble: feature list is empty")
	}
	if len(trees) == 0 {
		return nil, errors.New("ensemble: no estimators")
	}
	if len(weights) != len(trees) {
		return nil, fmt.Errorf("ensemble: %d weights for %d estimators", len(weights), len(trees))
	}

	total := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("ensemble: estimator %d has invalid weight %v", i, w)
		}
		total += w
	}
	if total <= 0 {
		return nil, errors.New("ensemble: estimator weights sum to zero")
	}

	for i := range trees {
		if err := trees[i].validate(len(features), 2); err != nil {
			return nil, fmt.Errorf("ensemble: estimator %d: %w", i, err)
		}
	}

	f := make([]string, len(features))
	copy(f, features)
	return &Ensemble{features: f, trees: trees, weights: weights, total: total}, nil
}

// Kind implements Classifier.
func (e *Ensemble) Kind() string {
	return KindBoostedTrees
}

// Features implements Classifier.
func (e *Ensemble) Features() []string {
	out := make([]string, len(e.features))
	copy(out, e.features)
	return out
}

// Decision returns the normalized weighted vote in [-1, 1]: the weight of
// trees voting home run minus the weight voting miss, over the total weight.
func (e *Ensemble) Decision(x []float64) float64 {
	vote := 0.0
	for i := range e.trees {
		if e.trees[i].predict(x) == LabelHomeRun {
			vote += e.weights[i]
		} else {
			vote -= e.weights[i]
		}
	}
	return vote / e.total
}

// Score implements Classifier. The label is home run when the decision is
// strictly positive; probabilities are the two-class softmax of
// [-d/2, d/2], so the predicted class always carries the larger probability.
func (e *Ensemble) Score(_ context.Context, x []float64) (Score, error) {
	if len(x) != len(e.features) {
		return Score{}, fmt.Errorf("ensemble: got %d features, want %d", len(x), len(e.features))
	}

	d := e.Decision(x)
	pHomeRun := 1 / (1 + math.Exp(-d))
	label := LabelMiss
	if d > 0 {
		label = LabelHomeRun
	}
	return Score{
		Label:         label,
		Probabilities: []float64{1 - pHomeRun, pHomeRun},
	}, nil
}
