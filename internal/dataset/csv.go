package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseError reports a malformed value in one of the source tables.
type ParseError struct {
	Source string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("dataset: %s line %d column %q: %v", e.Source, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("dataset: %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrMissingColumn is returned when a required header column is absent.
var ErrMissingColumn = errors.New("missing required column")

// missingTokens are the spellings of an absent value in the exported CSVs.
var missingTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
}

func isMissing(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}

// record is a header-indexed view over one CSV line.
type record struct {
	source string
	line   int
	index  map[string]int
	fields []string
}

func (r record) str(col string) string {
	v := strings.TrimSpace(r.fields[r.index[col]])
	if isMissing(v) {
		return ""
	}
	return v
}

func (r record) float(col string) (float64, error) {
	raw := strings.TrimSpace(r.fields[r.index[col]])
	if isMissing(raw) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ParseError{Source: r.source, Line: r.line, Column: col, Err: err}
	}
	return v, nil
}

// int parses a required integer column. Values exported as "3.0" are accepted.
func (r record) int(col string) (int, error) {
	raw := strings.TrimSpace(r.fields[r.index[col]])
	if isMissing(raw) {
		return 0, &ParseError{Source: r.source, Line: r.line, Column: col, Err: errors.New("value is required")}
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, &ParseError{Source: r.source, Line: r.line, Column: col, Err: fmt.Errorf("not an integer: %q", raw)}
	}
	return int(f), nil
}

// readTable reads a headered CSV stream, verifies the required columns, and
// calls fn once per data row.
func readTable(source string, rd io.Reader, required []string, fn func(record) error) error {
	cr := csv.NewReader(rd)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &ParseError{Source: source, Err: errors.New("empty file, header row expected")}
		}
		return &ParseError{Source: source, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		// Exports written by pandas often start with an unnamed index column
		// and may carry a UTF-8 BOM.
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return &ParseError{Source: source, Column: col, Err: fmt.Errorf("%w %q", ErrMissingColumn, col)}
		}
	}

	line := 1
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return &ParseError{Source: source, Line: line, Err: err}
		}
		if err := fn(record{source: source, line: line, index: index, fields: fields}); err != nil {
			return err
		}
	}
}

// ReadEvents parses the play-by-play event table.
func ReadEvents(source string, rd io.Reader) ([]Event, error) {
	var events []Event
	err := readTable(source, rd, eventColumns, func(r record) error {
		e := Event{
			BipID:       r.str(ColBipID),
			GameDate:    r.str(ColGameDate),
			HomeTeam:    r.str(ColHomeTeam),
			AwayTeam:    r.str(ColAwayTeam),
			BatterTeam:  r.str(ColBatterTeam),
			BatterName:  r.str(ColBatterName),
			PitcherName: r.str(ColPitcherName),
			BatterID:    r.str(ColBatterID),
			PitcherID:   r.str(ColPitcherID),
			BBType:      r.str(ColBBType),
			Bearing:     r.str(ColBearing),
			PitchName:   r.str(ColPitchName),
			Park:        r.str(ColPark),
		}

		ints := []struct {
			col string
			dst *int
		}{
			{ColIsBatterLefty, &e.IsBatterLefty},
			{ColIsPitcherLefty, &e.IsPitcherLefty},
			{ColInning, &e.Inning},
			{ColOutsWhenUp, &e.OutsWhenUp},
			{ColBalls, &e.Balls},
			{ColStrikes, &e.Strikes},
			{ColIsHomeRun, &e.IsHomeRun},
		}
		for _, f := range ints {
			v, err := r.int(f.col)
			if err != nil {
				return err
			}
			*f.dst = v
		}

		floats := []struct {
			col string
			dst *float64
		}{
			{ColPlateX, &e.PlateX},
			{ColPlateZ, &e.PlateZ},
			{ColPitchMPH, &e.PitchMPH},
			{ColLaunchSpeed, &e.LaunchSpeed},
			{ColLaunchAngle, &e.LaunchAngle},
		}
		for _, f := range floats {
			v, err := r.float(f.col)
			if err != nil {
				return err
			}
			*f.dst = v
		}

		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ReadParks parses the ballpark dimensions table. Park keys must be unique;
// a duplicate would fan out events in the join.
func ReadParks(source string, rd io.Reader) (map[string]*Park, error) {
	parks := make(map[string]*Park)
	err := readTable(source, rd, parkColumns, func(r record) error {
		p := &Park{
			Key:   r.str(ColPark),
			Name:  r.str(ColParkName),
			Cover: r.str(ColCover),
		}
		if p.Key == "" {
			return &ParseError{Source: r.source, Line: r.line, Column: ColPark, Err: errors.New("park key is required")}
		}
		if _, dup := parks[p.Key]; dup {
			return &ParseError{Source: r.source, Line: r.line, Column: ColPark, Err: fmt.Errorf("duplicate park key %q", p.Key)}
		}

		dims := []struct {
			col string
			dst *float64
		}{
			{ColLFDim, &p.LFDim},
			{ColCFDim, &p.CFDim},
			{ColRFDim, &p.RFDim},
			{ColLFW, &p.LFW},
			{ColCFW, &p.CFW},
			{ColRFW, &p.RFW},
		}
		for _, d := range dims {
			v, err := r.float(d.col)
			if err != nil {
				return err
			}
			*d.dst = v
		}

		parks[p.Key] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parks, nil
}
