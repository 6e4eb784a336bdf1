// Package scenario renders the human-facing description of an at-bat
// scenario, independent of the model encoding.
package scenario

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"atbat/internal/dataset"
)

// Dimensions are the six wall measurements of the park, in feet. Fields are
// nil when the park has no dimensions record.
type Dimensions struct {
	LFDistance *float64 `json:"lf_distance"`
	CFDistance *float64 `json:"cf_distance"`
	RFDistance *float64 `json:"rf_distance"`
	LFHeight   *float64 `json:"lf_height"`
	CFHeight   *float64 `json:"cf_height"`
	RFHeight   *float64 `json:"rf_height"`
}

// Count is the game state at the time of the pitch.
type Count struct {
	Balls   int `json:"balls"`
	Strikes int `json:"strikes"`
	Outs    int `json:"outs"`
	Inning  int `json:"inning"`
}

// Pitch describes the pitch thrown.
type Pitch struct {
	Type string   `json:"type"`
	MPH  *float64 `json:"mph"`
}

// View is the human-readable description of one scenario.
type View struct {
	Index    int        `json:"index"`
	Date     string     `json:"date"`
	HomeTeam string     `json:"home_team"`
	AwayTeam string     `json:"away_team"`
	Stadium  string     `json:"stadium"`
	Park     Dimensions `json:"park"`
	Pitcher  string     `json:"pitcher"`
	Batter   string     `json:"batter"`
	Count    Count      `json:"count"`
	Pitch    Pitch      `json:"pitch"`
	Headline []string   `json:"headline"`
}

// Presenter describes scenarios of a loaded table.
type Presenter struct {
	table *dataset.Table
}

// NewPresenter creates a Presenter over table.
func NewPresenter(table *dataset.Table) *Presenter {
	return &Presenter{table: table}
}

// Len returns the number of scenarios available.
func (p *Presenter) Len() int {
	return p.table.Len()
}

// Describe returns the view of scenario i. It is a pure read: the same index
// always yields the same view.
func (p *Presenter) Describe(i int) (View, error) {
	s, err := p.table.Row(i)
	if err != nil {
		return View{}, err
	}

	e := s.Event
	v := View{
		Index:    s.Index,
		Date:     e.GameDate,
		HomeTeam: e.HomeTeam,
		AwayTeam: e.AwayTeam,
		Stadium:  s.StadiumName(),
		Park: Dimensions{
			LFDistance: optional(s.Dimension(dataset.ColLFDim)),
			CFDistance: optional(s.Dimension(dataset.ColCFDim)),
			RFDistance: optional(s.Dimension(dataset.ColRFDim)),
			LFHeight:   optional(s.Dimension(dataset.ColLFW)),
			CFHeight:   optional(s.Dimension(dataset.ColCFW)),
			RFHeight:   optional(s.Dimension(dataset.ColRFW)),
		},
		Pitcher: DisplayName(e.PitcherName),
		Batter:  DisplayName(e.BatterName),
		Count: Count{
			Balls:   e.Balls,
			Strikes: e.Strikes,
			Outs:    e.OutsWhenUp,
			Inning:  e.Inning,
		},
		Pitch: Pitch{
			Type: e.PitchName,
			MPH:  optional(e.PitchMPH),
		},
	}
	v.Headline = headline(v)
	return v, nil
}

func headline(v View) []string {
	mph := "unknown"
	if v.Pitch.MPH != nil {
		mph = fmt.Sprintf("%g", *v.Pitch.MPH)
	}
	pitch := v.Pitch.Type
	if pitch == "" {
		pitch = "pitch"
	}
	stadium := v.Stadium
	if stadium == "" {
		stadium = "an unknown park"
	}
	return []string{
		fmt.Sprintf("%s vs %s at %s on %s", v.HomeTeam, v.AwayTeam, stadium, v.Date),
		fmt.Sprintf("Batting as %s and facing pitcher, %s.", v.Batter, v.Pitcher),
		fmt.Sprintf("%s throws you a %s at %s MPH!", v.Pitcher, pitch, mph),
	}
}

func optional(v float64) *float64 {
	if !dataset.Present(v) {
		return nil
	}
	return &v
}

// DisplayName turns "Last, First" into "First Last". Each part is trimmed
// and capitalized (first letter upper, remainder lower). Only the first comma
// splits; a name without a comma is capitalized as a whole.
func DisplayName(raw string) string {
	last, first, ok := strings.Cut(raw, ",")
	if !ok {
		return capitalize(strings.TrimSpace(raw))
	}
	first = capitalize(strings.TrimSpace(first))
	last = capitalize(strings.TrimSpace(last))
	if first == "" {
		return last
	}
	return first + " " + last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
