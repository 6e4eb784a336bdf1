// Package features turns a merged scenario row into the flat, ordered
// feature vector the home-run classifier was fit on.
package features

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownFeature is returned when a row is read or patched by a name that
// is not part of the schema.
var ErrUnknownFeature = errors.New("unknown feature")

// Group is the set of one-hot columns generated for one categorical field.
type Group struct {
	Field   string
	Columns []string
}

// Schema is the ordered list of feature names. Column order follows the
// one-hot convention of the training export: pass-through numeric columns
// first, then each categorical field's indicator columns.
type Schema struct {
	names  []string
	index  map[string]int
	groups []Group
}

func newSchema(numeric []string, groups []Group) *Schema {
	s := &Schema{index: make(map[string]int)}
	add := func(name string) {
		s.index[name] = len(s.names)
		s.names = append(s.names, name)
	}
	for _, n := range numeric {
		add(n)
	}
	for _, g := range groups {
		for _, c := range g.Columns {
			add(c)
		}
	}
	s.groups = groups
	return s
}

// Names returns a copy of the ordered feature names.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of features.
func (s *Schema) Len() int {
	return len(s.names)
}

// Has reports whether name is a feature of the schema.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Groups returns the one-hot column groups in schema order.
func (s *Schema) Groups() []Group {
	return s.groups
}

// MismatchError lists the differences between the encoder schema and the
// feature list a classifier expects.
type MismatchError struct {
	Missing []string // expected by the classifier, not produced by the encoder
	Extra   []string // produced by the encoder, unknown to the classifier
}

func (e *MismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %d feature(s): %s", len(e.Missing), strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected %d feature(s): %s", len(e.Extra), strings.Join(e.Extra, ", ")))
	}
	return "feature schema mismatch: " + strings.Join(parts, "; ")
}

// Validate checks that the schema covers exactly the expected features.
// Order may differ: rows are always projected with Row.Vector in the
// classifier's order.
func (s *Schema) Validate(expected []string) error {
	want := make(map[string]struct{}, len(expected))
	var mismatch MismatchError
	for _, name := range expected {
		if _, dup := want[name]; dup {
			return fmt.Errorf("feature schema mismatch: classifier lists %q twice", name)
		}
		want[name] = struct{}{}
		if !s.Has(name) {
			mismatch.Missing = append(mismatch.Missing, name)
		}
	}
	for _, name := range s.names {
		if _, ok := want[name]; !ok {
			mismatch.Extra = append(mismatch.Extra, name)
		}
	}
	if len(mismatch.Missing) == 0 && len(mismatch.Extra) == 0 {
		return nil
	}
	sort.Strings(mismatch.Missing)
	sort.Strings(mismatch.Extra)
	return &mismatch
}
