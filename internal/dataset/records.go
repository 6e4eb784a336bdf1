// Package dataset loads the static at-bat dataset: a play-by-play table of
// batted-ball events and a ballpark dimensions table, left-joined on the park
// key into an immutable, position-indexed scenario table.
package dataset

import "math"

// Event is one historical batted-ball event from the play-by-play table.
// Numeric measurements that are absent in the source are NaN.
type Event struct {
	BipID       string
	GameDate    string
	HomeTeam    string
	AwayTeam    string
	BatterTeam  string
	BatterName  string
	PitcherName string
	BatterID    string
	PitcherID   string

	IsBatterLefty  int
	IsPitcherLefty int
	BBType         string
	Bearing        string
	PitchName      string
	Park           string

	Inning     int
	OutsWhenUp int
	Balls      int
	Strikes    int

	PlateX      float64
	PlateZ      float64
	PitchMPH    float64
	LaunchSpeed float64
	LaunchAngle float64

	IsHomeRun int
}

// Park holds the wall distances and heights of one ballpark, in feet.
type Park struct {
	Key   string
	Name  string
	Cover string

	LFDim float64
	CFDim float64
	RFDim float64
	LFW   float64
	CFW   float64
	RFW   float64
}

// Scenario is one row of the merged table. Park is nil when the event's park
// key has no dimensions record.
type Scenario struct {
	Index int
	Event Event
	Park  *Park
}

// StadiumName returns the park name, or "" for an unmatched park.
func (s Scenario) StadiumName() string {
	if s.Park == nil {
		return ""
	}
	return s.Park.Name
}

// Cover returns the roof/cover category, or "" for an unmatched park.
func (s Scenario) Cover() string {
	if s.Park == nil {
		return ""
	}
	return s.Park.Cover
}

// Dimension returns one of the six park measurements by source column name
// (LF_Dim, CF_Dim, RF_Dim, LF_W, CF_W, RF_W). Unmatched parks yield NaN.
func (s Scenario) Dimension(column string) float64 {
	if s.Park == nil {
		return math.NaN()
	}
	switch column {
	case ColLFDim:
		return s.Park.LFDim
	case ColCFDim:
		return s.Park.CFDim
	case ColRFDim:
		return s.Park.RFDim
	case ColLFW:
		return s.Park.LFW
	case ColCFW:
		return s.Park.CFW
	case ColRFW:
		return s.Park.RFW
	}
	return math.NaN()
}

// Present reports whether a numeric value was present in the source data.
func Present(v float64) bool {
	return !math.IsNaN(v)
}
