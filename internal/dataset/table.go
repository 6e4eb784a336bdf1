package dataset

import (
	"errors"
	"fmt"
	"sort"
)

// ErrIndexOutOfRange is returned when a scenario index is not a valid row
// position of the merged table.
var ErrIndexOutOfRange = errors.New("scenario index out of range")

// Table is the merged event x park table. It is never mutated after
// construction and is safe for concurrent readers.
type Table struct {
	rows      []Scenario
	unmatched int
}

// Merge left-joins events onto parks by park key, keeping every event row,
// then orders rows by a stable ascending sort on strikes.
func Merge(events []Event, parks map[string]*Park) *Table {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Strikes < sorted[j].Strikes
	})

	t := &Table{rows: make([]Scenario, len(sorted))}
	for i, e := range sorted {
		p := parks[e.Park]
		if p == nil {
			t.unmatched++
		}
		t.rows[i] = Scenario{Index: i, Event: e, Park: p}
	}
	return t
}

// Len returns the number of scenarios.
func (t *Table) Len() int {
	return len(t.rows)
}

// Unmatched returns how many events had no park dimensions record.
func (t *Table) Unmatched() int {
	return t.unmatched
}

// Row returns the scenario at position i.
func (t *Table) Row(i int) (Scenario, error) {
	if i < 0 || i >= len(t.rows) {
		return Scenario{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(t.rows))
	}
	return t.rows[i], nil
}

// Each calls fn for every scenario in row order.
func (t *Table) Each(fn func(Scenario)) {
	for _, s := range t.rows {
		fn(s)
	}
}
