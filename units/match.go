package units

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tsawler/metricate/rounding"
)

// ErrMalformedMatch reports a phrase whose text matched but whose values
// could not be read as finite numbers.
var ErrMalformedMatch = errors.New("malformed match")

// Pattern is one catalog entry.
type Pattern struct {
	Name   string
	Family rounding.Family
	Kind   Kind
	Label  string

	re *regexp.Regexp
}

// Match is one occurrence of a pattern in a piece of text.
type Match struct {
	Pattern *Pattern

	// Raw is the matched phrase exactly as it appears in the text.
	Raw string

	// Start and End are byte offsets of Raw in the searched text.
	Start int
	End   int

	// Values holds one value for Single phrases and two for Range phrases.
	Values []float64

	// Err is non-nil when the phrase could not be read; Values is then nil.
	Err error
}

// Find returns every non-overlapping occurrence of the pattern in text,
// in order. Find keeps no state between calls.
func (p *Pattern) Find(text string) []Match {
	locs := p.re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		// loc[2:4] is the phrase; the word-end guard trails it.
		start, end := loc[2], loc[3]
		m := Match{
			Pattern: p,
			Start:   start,
			End:     end,
		}
		if start < 0 || end <= start {
			m.Err = fmt.Errorf("%s: empty phrase: %w", p.Name, ErrMalformedMatch)
			matches = append(matches, m)
			continue
		}
		m.Raw = text[start:end]

		values := make([]float64, 0, p.Kind.arity())
		for g := 2; g < len(loc)/2; g++ {
			s, e := loc[2*g], loc[2*g+1]
			if s < 0 {
				m.Err = fmt.Errorf("%s: missing value in %q: %w", p.Name, m.Raw, ErrMalformedMatch)
				break
			}
			v, err := parseNumber(text[s:e])
			if err != nil {
				m.Err = fmt.Errorf("%s: %q: %v: %w", p.Name, m.Raw, err, ErrMalformedMatch)
				break
			}
			values = append(values, v)
		}
		if m.Err == nil {
			m.Values = values
		}
		matches = append(matches, m)
	}
	return matches
}

// Convert returns the display value of v in the given mode.
func (p *Pattern) Convert(v float64, mode rounding.Mode) float64 {
	return p.Family.Convert(v, mode)
}

// Precise returns the tooltip value of v.
func (p *Pattern) Precise(v float64) float64 {
	return p.Family.Precise(v)
}

// Overlaps reports whether m shares any byte with other.
func (m Match) Overlaps(other Match) bool {
	return m.Start < other.End && other.Start < m.End
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("value %q out of range", s)
	}
	return v, nil
}
