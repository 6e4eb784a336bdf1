package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Artifact is the on-disk export of a trained boosted-tree classifier.
type Artifact struct {
	Kind             string    `json:"kind"`
	Algorithm        string    `json:"algorithm"`
	Classes          []int     `json:"classes"`
	Features         []string  `json:"features"`
	EstimatorWeights []float64 `json:"estimator_weights"`
	Estimators       []Tree    `json:"estimators"`
}

// ErrCorruptArtifact wraps every decoding or validation failure.
var ErrCorruptArtifact = errors.New("corrupt model artifact")

// LoadArtifact reads and validates a model artifact. A ".zst" suffix marks a
// zstd-compressed file.
func LoadArtifact(path string) (*Ensemble, error) {
	if path == "" {
		return nil, errors.New("model: artifact path must not be empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model: opening %s: %w", path, err)
	}
	defer f.Close()

	var rd io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("model: %s: %w: %v", path, ErrCorruptArtifact, err)
		}
		defer dec.Close()
		rd = dec
	}

	e, err := DecodeArtifact(rd)
	if err != nil {
		return nil, fmt.Errorf("model: %s: %w", path, err)
	}
	return e, nil
}

// DecodeArtifact parses an uncompressed artifact stream.
func DecodeArtifact(r io.Reader) (*Ensemble, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}

	if a.Kind != "" && a.Kind != KindBoostedTrees {
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrCorruptArtifact, a.Kind)
	}
	if a.Algorithm != "" && !strings.EqualFold(a.Algorithm, "SAMME") {
		return nil, fmt.Errorf("%w: unsupported boosting algorithm %q", ErrCorruptArtifact, a.Algorithm)
	}
	if len(a.Classes) != 0 && (len(a.Classes) != 2 || a.Classes[0] != LabelMiss || a.Classes[1] != LabelHomeRun) {
		return nil, fmt.Errorf("%w: classes must be [0, 1], got %v", ErrCorruptArtifact, a.Classes)
	}
	seen := make(map[string]struct{}, len(a.Features))
	for _, name := range a.Features {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate feature %q", ErrCorruptArtifact, name)
		}
		seen[name] = struct{}{}
	}

	e, err := NewEnsemble(a.Features, a.Estimators, a.EstimatorWeights)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	return e, nil
}
