package types

import (
	"strings"
	"time"
)

// Bearing is the horizontal direction of a batted ball's flight.
type Bearing string

const (
	BearingLeft   Bearing = "Left"
	BearingCenter Bearing = "Center"
	BearingRight  Bearing = "Right"
)

// Bearings lists the selectable bearings in display order.
var Bearings = []Bearing{BearingLeft, BearingCenter, BearingRight}

// ParseBearing accepts any casing of left/center/right.
func ParseBearing(s string) (Bearing, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return BearingLeft, true
	case "center":
		return BearingCenter, true
	case "right":
		return BearingRight, true
	}
	return "", false
}

// FeatureLevel is the level name used by the one-hot bearing columns
// ("bearing_left", "bearing_center", "bearing_right").
func (b Bearing) FeatureLevel() string {
	return strings.ToLower(string(b))
}

// Outcome is the result of the most recent swing in a session.
type Outcome string

const (
	OutcomeUnknown Outcome = "unknown"
	OutcomeHit     Outcome = "hit"
	OutcomeMiss    Outcome = "miss"
)

// Swing is the user-chosen launch parameters for one prediction.
type Swing struct {
	LaunchSpeed float64 `json:"launch_speed" validate:"gte=0,lte=105"`
	LaunchAngle float64 `json:"launch_angle" validate:"gte=-80,lte=80"`
	Bearing     Bearing `json:"bearing" validate:"required,oneof=Left Center Right"`
}

// Swing control bounds. Requests outside them are rejected.
const (
	MinLaunchSpeed     = 0.0
	MaxLaunchSpeed     = 105.0
	DefaultLaunchSpeed = 50.0
	MinLaunchAngle     = -80.0
	MaxLaunchAngle     = 80.0
	DefaultLaunchAngle = 20.0
)

// RangeControl describes one bounded numeric input.
type RangeControl struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Unit    string  `json:"unit"`
}

// SwingControls is sent alongside every scenario so a client can render
// the input form without hardcoding bounds.
type SwingControls struct {
	LaunchSpeed RangeControl `json:"launch_speed"`
	LaunchAngle RangeControl `json:"launch_angle"`
	Bearings    []Bearing    `json:"bearings"`
}

// DefaultSwingControls returns the control bounds used for validation.
func DefaultSwingControls() SwingControls {
	return SwingControls{
		LaunchSpeed: RangeControl{Min: MinLaunchSpeed, Max: MaxLaunchSpeed, Default: DefaultLaunchSpeed, Unit: "mph"},
		LaunchAngle: RangeControl{Min: MinLaunchAngle, Max: MaxLaunchAngle, Default: DefaultLaunchAngle, Unit: "degrees"},
		Bearings:    Bearings,
	}
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
