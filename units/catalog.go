// Package units holds the catalog of recognizable imperial unit phrases.
//
// Each [Pattern] couples a matcher with a rounding family and an output
// label. The catalog order is significant: phrases that contain another
// phrase as a suffix (a feet range, a cubic foot) come before the simpler
// phrase so that the longer reading claims the text first.
package units

import (
	"fmt"
	"regexp"

	"github.com/tsawler/metricate/rounding"
)

// Kind distinguishes single-value phrases from range phrases.
type Kind int

const (
	// Single is a phrase carrying one value, such as "30 feet".
	Single Kind = iota
	// Range is a phrase carrying two bounding values, such as "5-7 feet".
	Range
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Range:
		return "range"
	default:
		return "unknown"
	}
}

// arity returns how many numeric captures a phrase of this kind carries.
func (k Kind) arity() int {
	if k == Range {
		return 2
	}
	return 1
}

const (
	// number matches an integer or decimal, optionally with thousands separators.
	number = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`

	// wordEnd stands in for a (?!\w) lookahead, which RE2 lacks. It consumes
	// at most one non-word character that is trimmed from the reported span.
	wordEnd = `(?:[^0-9A-Za-z_]|$)`

	rangeSep = `\s*(?:-|–|—|\s+to\s+)\s*`
)

var catalog []*Pattern

func init() {
	catalog = []*Pattern{
		mustPattern("feet-range", rounding.Feet, Range, "meters",
			number+rangeSep+number+`\s*(?:foot|feet|ft\.?|′)`),
		mustPattern("cubic-feet", rounding.CubicFeet, Single, "m³",
			number+`\s*(?:cubic\s+feet|cubic\s+foot|cu\.?\s*ft|ft³|ft\^3)`),
		mustPattern("feet", rounding.Feet, Single, "meters",
			number+`(?:\s*|-)(?:foot|feet|ft\.?|′)`),
		mustPattern("miles", rounding.Miles, Single, "km",
			number+`\s*(?:miles|mile|mi\.?)`),
		mustPattern("inches", rounding.Inches, Single, "cm",
			number+`\s*(?:inches|inch|in\.?|″)`),
		mustPattern("pounds", rounding.Pounds, Single, "kg",
			number+`\s*(?:pounds|pound|lbs\.?|lb)`),
		mustPattern("gallons", rounding.Gallons, Single, "liters",
			number+`\s*(?:gallons|gallon|gal\.?)`),
		mustPattern("quarts", rounding.Quarts, Single, "liters",
			number+`\s*(?:quarts|quart|qt\.?)`),
		mustPattern("fahrenheit", rounding.Fahrenheit, Single, "°C",
			number+`\s*(?:°F|degrees\s+Fahrenheit|Fahrenheit)`),
	}
}

// Catalog returns the ordered unit catalog. The returned slice is a copy;
// the patterns themselves are shared and must not be modified.
func Catalog() []*Pattern {
	out := make([]*Pattern, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry with the given name, or nil.
func Lookup(name string) *Pattern {
	for _, p := range catalog {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// New compiles a custom catalog entry. The expression describes the phrase
// only and must contain exactly one capture group per value of kind, in
// order; use non-capturing groups for everything else. Matching is
// case-insensitive and the unit token must end at a word boundary.
func New(name string, family rounding.Family, kind Kind, label, expr string) (*Pattern, error) {
	re, err := regexp.Compile(`(?i)(` + expr + `)` + wordEnd)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", name, err)
	}
	if got, want := re.NumSubexp(), kind.arity()+1; got != want {
		return nil, fmt.Errorf("pattern %q: %d value groups, want %d", name, got-1, want-1)
	}
	return &Pattern{
		Name:   name,
		Family: family,
		Kind:   kind,
		Label:  label,
		re:     re,
	}, nil
}

func mustPattern(name string, family rounding.Family, kind Kind, label, expr string) *Pattern {
	p, err := New(name, family, kind, label, expr)
	if err != nil {
		panic(err)
	}
	return p
}
