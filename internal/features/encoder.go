package features

import (
	"fmt"
	"sort"
	"strconv"

	"atbat/internal/dataset"
	"atbat/internal/types"
)

// Feature names patched from user input before scoring.
const (
	LaunchSpeed = dataset.ColLaunchSpeed
	LaunchAngle = dataset.ColLaunchAngle
)

// BearingColumn returns the indicator column for a bearing, e.g.
// "bearing_center".
func BearingColumn(b types.Bearing) string {
	return ColumnName(dataset.ColBearing, b.FeatureLevel())
}

// ColumnName builds a one-hot column name "<field>_<level>".
func ColumnName(field, level string) string {
	return field + "_" + level
}

type numericField struct {
	name  string
	value func(dataset.Scenario) float64
}

type categoricalField struct {
	name    string
	ordinal bool // levels sort numerically
	level   func(dataset.Scenario) (string, bool)
	always  []string
}

// numericFields pass through unchanged, in source column order. Identifier
// and label columns (park, bip_id, game_date, teams, names, ids, bb_type,
// is_home_run) are never encoded.
var numericFields = []numericField{
	{dataset.ColPlateX, func(s dataset.Scenario) float64 { return s.Event.PlateX }},
	{dataset.ColPlateZ, func(s dataset.Scenario) float64 { return s.Event.PlateZ }},
	{dataset.ColPitchMPH, func(s dataset.Scenario) float64 { return s.Event.PitchMPH }},
	{dataset.ColLaunchSpeed, func(s dataset.Scenario) float64 { return s.Event.LaunchSpeed }},
	{dataset.ColLaunchAngle, func(s dataset.Scenario) float64 { return s.Event.LaunchAngle }},
	{dataset.ColLFDim, func(s dataset.Scenario) float64 { return s.Dimension(dataset.ColLFDim) }},
	{dataset.ColCFDim, func(s dataset.Scenario) float64 { return s.Dimension(dataset.ColCFDim) }},
	{dataset.ColRFDim, func(s dataset.Scenario) float64 { return s.Dimension(dataset.ColRFDim) }},
	{dataset.ColLFW, func(s dataset.Scenario) float64 { return s.Dimension(dataset.ColLFW) }},
	{dataset.ColCFW, func(s dataset.Scenario) float64 { return s.Dimension(dataset.ColCFW) }},
	{dataset.ColRFW, func(s dataset.Scenario) float64 { return s.Dimension(dataset.ColRFW) }},
}

func stringLevel(v string) (string, bool) { return v, v != "" }
func intLevel(v int) (string, bool)       { return strconv.Itoa(v), true }

// categoricalFields are one-hot encoded in this order.
var categoricalFields = []categoricalField{
	{name: dataset.ColCover, level: func(s dataset.Scenario) (string, bool) { return stringLevel(s.Cover()) }},
	{name: dataset.ColIsBatterLefty, ordinal: true, level: func(s dataset.Scenario) (string, bool) { return intLevel(s.Event.IsBatterLefty) }},
	{name: dataset.ColIsPitcherLefty, ordinal: true, level: func(s dataset.Scenario) (string, bool) { return intLevel(s.Event.IsPitcherLefty) }},
	{
		name:  dataset.ColBearing,
		level: func(s dataset.Scenario) (string, bool) { return stringLevel(s.Event.Bearing) },
		// User input may pick any bearing, so all three columns exist even
		// if the dataset never saw one of them.
		always: []string{"center", "left", "right"},
	},
	{name: dataset.ColPitchName, level: func(s dataset.Scenario) (string, bool) { return stringLevel(s.Event.PitchName) }},
	{name: dataset.ColInning, ordinal: true, level: func(s dataset.Scenario) (string, bool) { return intLevel(s.Event.Inning) }},
	{name: dataset.ColOutsWhenUp, ordinal: true, level: func(s dataset.Scenario) (string, bool) { return intLevel(s.Event.OutsWhenUp) }},
	{name: dataset.ColBalls, ordinal: true, level: func(s dataset.Scenario) (string, bool) { return intLevel(s.Event.Balls) }},
	{name: dataset.ColStrikes, ordinal: true, level: func(s dataset.Scenario) (string, bool) { return intLevel(s.Event.Strikes) }},
}

// Encoder produces model-ready rows for scenario indices. Levels are taken
// from the whole table once at construction; the encoder is read-only
// afterwards and safe for concurrent use.
type Encoder struct {
	table  *dataset.Table
	schema *Schema
}

// NewEncoder scans the table for categorical levels and fixes the schema.
func NewEncoder(table *dataset.Table) *Encoder {
	observed := make([]map[string]struct{}, len(categoricalFields))
	for i, f := range categoricalFields {
		observed[i] = make(map[string]struct{})
		for _, lvl := range f.always {
			observed[i][lvl] = struct{}{}
		}
	}
	table.Each(func(s dataset.Scenario) {
		for i, f := range categoricalFields {
			if lvl, ok := f.level(s); ok {
				observed[i][lvl] = struct{}{}
			}
		}
	})

	numeric := make([]string, len(numericFields))
	for i, f := range numericFields {
		numeric[i] = f.name
	}

	groups := make([]Group, len(categoricalFields))
	for i, f := range categoricalFields {
		levels := sortedLevels(observed[i], f.ordinal)
		cols := make([]string, len(levels))
		for j, lvl := range levels {
			cols[j] = ColumnName(f.name, lvl)
		}
		groups[i] = Group{Field: f.name, Columns: cols}
	}

	return &Encoder{table: table, schema: newSchema(numeric, groups)}
}

func sortedLevels(set map[string]struct{}, ordinal bool) []string {
	levels := make([]string, 0, len(set))
	for lvl := range set {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool {
		if ordinal {
			a, errA := strconv.Atoi(levels[i])
			b, errB := strconv.Atoi(levels[j])
			if errA == nil && errB == nil {
				return a < b
			}
		}
		return levels[i] < levels[j]
	})
	return levels
}

// Schema returns the encoder's feature schema.
func (e *Encoder) Schema() *Schema {
	return e.schema
}

// Encode returns a fresh row for scenario i. A categorical value absent from
// the source leaves every column of its group at 0.
func (e *Encoder) Encode(i int) (Row, error) {
	s, err := e.table.Row(i)
	if err != nil {
		return Row{}, err
	}

	row := Row{schema: e.schema, values: make([]float64, e.schema.Len())}
	for _, f := range numericFields {
		if err := row.Set(f.name, f.value(s)); err != nil {
			return Row{}, err
		}
	}
	for _, f := range categoricalFields {
		lvl, ok := f.level(s)
		if !ok {
			continue
		}
		if err := row.SetBool(ColumnName(f.name, lvl), true); err != nil {
			return Row{}, fmt.Errorf("encoding %s: %w", f.name, err)
		}
	}
	return row, nil
}
