package features

import "fmt"

// Row is one encoded scenario: a value per schema feature. Booleans are
// stored as 1 or 0. A Row owns its values; patching it never affects the
// table it came from.
type Row struct {
	schema *Schema
	values []float64
}

// Get returns the value of a feature.
func (r Row) Get(name string) (float64, bool) {
	i, ok := r.schema.index[name]
	if !ok {
		return 0, false
	}
	return r.values[i], true
}

// Set overwrites an existing feature. Unknown names are rejected rather than
// added, so a patched row can never drift from the schema.
func (r Row) Set(name string, v float64) error {
	i, ok := r.schema.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	r.values[i] = v
	return nil
}

// SetBool overwrites an existing indicator feature.
func (r Row) SetBool(name string, b bool) error {
	return r.Set(name, boolValue(b))
}

// Vector projects the row onto the given feature order.
func (r Row) Vector(order []string) ([]float64, error) {
	out := make([]float64, len(order))
	for i, name := range order {
		j, ok := r.schema.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		out[i] = r.values[j]
	}
	return out, nil
}

// Map returns the row as a name to value mapping.
func (r Row) Map() map[string]float64 {
	m := make(map[string]float64, len(r.values))
	for i, name := range r.schema.names {
		m[name] = r.values[i]
	}
	return m
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
