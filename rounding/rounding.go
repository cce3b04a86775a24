// Package rounding converts imperial quantities to metric and rounds the
// result for display.
//
// Two modes are supported. [Plain] rounds every conversion of a family to a
// fixed number of decimal places. [Smart] picks the precision from the
// magnitude of the input value using the family's declared step table, so
// "5 feet" reads as "1.5 meters" while "150 miles" reads as "240 km".
//
// All rounding is half away from zero.
package rounding

import (
	"math"
	"strconv"
)

// Mode selects the rounding policy.
type Mode int

const (
	// Plain rounds to a fixed number of decimal places per family.
	Plain Mode = iota
	// Smart rounds according to the magnitude of the input value.
	Smart
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case Plain:
		return "plain"
	case Smart:
		return "smart"
	default:
		return "unknown"
	}
}

// ModeFor maps the smartRounding setting to a Mode.
func ModeFor(smart bool) Mode {
	if smart {
		return Smart
	}
	return Plain
}

// Step is one row of a smart rounding table. Inputs whose magnitude is
// below Below are rounded to Places decimal places. A negative Places
// rounds to tens (-1), hundreds (-2) and so on.
type Step struct {
	Below  float64
	Places int
}

// Family describes one unit family: how to convert it and how to round it.
type Family struct {
	Name string

	// Factor and Offset define metric = (imperial - Offset) * Factor.
	Factor float64
	Offset float64

	// Plain is the decimal places used in plain mode.
	Plain int

	// PrecisePlaces is the decimal places used for tooltip values.
	PrecisePlaces int

	// Steps is the smart mode table, ordered by ascending Below.
	// The last step should use math.Inf(1).
	Steps []Step
}

var inf = math.Inf(1)

// Declared unit families.
var (
	Feet = Family{
		Name: "feet", Factor: 0.3048, Plain: 1, PrecisePlaces: 2,
		Steps: []Step{{10, 1}, {inf, 0}},
	}
	Miles = Family{
		Name: "miles", Factor: 1.60934, Plain: 1, PrecisePlaces: 2,
		Steps: []Step{{10, 1}, {100, 0}, {inf, -1}},
	}
	Inches = Family{
		Name: "inches", Factor: 2.54, Plain: 0, PrecisePlaces: 2,
		Steps: []Step{{10, 1}, {inf, 0}},
	}
	Pounds = Family{
		Name: "pounds", Factor: 0.453592, Plain: 2, PrecisePlaces: 2,
		Steps: []Step{{10, 1}, {inf, 0}},
	}
	Gallons = Family{
		Name: "gallons", Factor: 3.78541, Plain: 0, PrecisePlaces: 2,
		Steps: []Step{{10, 1}, {inf, 0}},
	}
	Quarts = Family{
		Name: "quarts", Factor: 0.946353, Plain: 1, PrecisePlaces: 2,
		Steps: []Step{{10, 1}, {inf, 0}},
	}
	CubicFeet = Family{
		Name: "cubic feet", Factor: 0.0283168, Plain: 2, PrecisePlaces: 3,
		Steps: []Step{{1, 3}, {10, 2}, {inf, 1}},
	}
	Fahrenheit = Family{
		Name: "fahrenheit", Factor: 5.0 / 9.0, Offset: 32, Plain: 0, PrecisePlaces: 2,
		Steps: []Step{{inf, 0}},
	}
)

// Raw returns the unrounded metric value.
func (f Family) Raw(v float64) float64 {
	return (v - f.Offset) * f.Factor
}

// Convert returns the display value of v in the given mode.
func (f Family) Convert(v float64, mode Mode) float64 {
	if mode == Smart {
		return Round(f.Raw(v), f.SmartPlaces(v))
	}
	return Round(f.Raw(v), f.Plain)
}

// Precise returns the value shown next to a smart rounded display value.
func (f Family) Precise(v float64) float64 {
	return Round(f.Raw(v), f.PrecisePlaces)
}

// SmartPlaces returns the decimal places the step table assigns to input v.
func (f Family) SmartPlaces(v float64) int {
	mag := math.Abs(v)
	for _, s := range f.Steps {
		if mag < s.Below {
			return s.Places
		}
	}
	if len(f.Steps) == 0 {
		return f.Plain
	}
	return f.Steps[len(f.Steps)-1].Places
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	var r float64
	if places >= 0 {
		p := math.Pow(10, float64(places))
		r = math.Round(v*p) / p
	} else {
		p := math.Pow(10, float64(-places))
		r = math.Round(v/p) * p
	}
	if r == 0 {
		// drop the sign of -0
		return 0
	}
	return r
}

// Format renders v as the shortest decimal string.
func Format(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
