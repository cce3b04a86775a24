package units

import (
	"errors"
	"strings"
	"testing"

	"github.com/tsawler/metricate/rounding"
)

func TestCatalog_Order(t *testing.T) {
	want := []string{
		"feet-range", "cubic-feet", "feet", "miles", "inches",
		"pounds", "gallons", "quarts", "fahrenheit",
	}
	got := Catalog()
	if len(got) != len(want) {
		t.Fatalf("Catalog() has %d entries, want %d", len(got), len(want))
	}
	for i, p := range got {
		if p.Name != want[i] {
			t.Errorf("Catalog()[%d] = %q, want %q", i, p.Name, want[i])
		}
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	a := Catalog()
	a[0] = nil
	if Catalog()[0] == nil {
		t.Error("mutating the returned slice changed the catalog")
	}
}

func TestPattern_Find(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
		raws    []string
	}{
		{"feet", "a 30 feet pole", []string{"30 feet"}},
		{"feet", "a 10-ft pole and 3ft. rope", []string{"10-ft", "3ft."}},
		{"feet", "It is 5′ tall", []string{"5′"}},
		{"feet", "soft ground", nil},
		{"feet", "5 feeter", nil},
		{"feet", "1,000 feet below", []string{"1,000 feet"}},
		{"feet-range", "travel 5-7 feet north", []string{"5-7 feet"}},
		{"feet-range", "5 to 7 ft away", []string{"5 to 7 ft"}},
		{"feet-range", "5–7 foot", []string{"5–7 foot"}},
		{"miles", "3 miles, then 2 mi.", []string{"3 miles", "2 mi."}},
		{"miles", "6 milestones", nil},
		{"inches", `a 12" ruler, 6 inches and 2″`, []string{"6 inches", "2″"}},
		{"inches", "3 inchworms", nil},
		{"pounds", "10 lbs of flour and 1 pound of salt", []string{"10 lbs", "1 pound"}},
		{"pounds", "5 LB bag", []string{"5 LB"}},
		{"gallons", "2 gallons, 3 gal", []string{"2 gallons", "3 gal"}},
		{"gallons", "4 galaxies", nil},
		{"quarts", "1 quart", []string{"1 quart"}},
		{"cubic-feet", "10 cubic feet, 2 cu ft and 3 ft³", []string{"10 cubic feet", "2 cu ft", "3 ft³"}},
		{"fahrenheit", "98.6°F or 212 degrees Fahrenheit", []string{"98.6°F", "212 degrees Fahrenheit"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.text, func(t *testing.T) {
			p := Lookup(tt.pattern)
			if p == nil {
				t.Fatalf("Lookup(%q) = nil", tt.pattern)
			}
			matches := p.Find(tt.text)
			if len(matches) != len(tt.raws) {
				t.Fatalf("Find(%q) found %d matches, want %d: %+v", tt.text, len(matches), len(tt.raws), matches)
			}
			for i, m := range matches {
				if m.Raw != tt.raws[i] {
					t.Errorf("match %d Raw = %q, want %q", i, m.Raw, tt.raws[i])
				}
				if tt.text[m.Start:m.End] != m.Raw {
					t.Errorf("match %d offsets [%d:%d] do not cover %q", i, m.Start, m.End, m.Raw)
				}
				if m.Err != nil {
					t.Errorf("match %d unexpected error: %v", i, m.Err)
				}
			}
		})
	}
}

func TestPattern_FindValues(t *testing.T) {
	m := Lookup("feet-range").Find("5.5 to 7 feet")
	if len(m) != 1 {
		t.Fatalf("expected one match, got %d", len(m))
	}
	if len(m[0].Values) != 2 || m[0].Values[0] != 5.5 || m[0].Values[1] != 7 {
		t.Errorf("Values = %v, want [5.5 7]", m[0].Values)
	}

	m = Lookup("feet").Find("1,250 feet")
	if len(m) != 1 || m[0].Values[0] != 1250 {
		t.Errorf("thousands separator not parsed: %+v", m)
	}
}

func TestPattern_FindIsReentrant(t *testing.T) {
	p := Lookup("miles")
	text := "1 mile, 2 miles, 3 mi"
	first := p.Find(text)
	second := p.Find(text)
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("repeated Find gave %d and %d matches, want 3", len(first), len(second))
	}
	for i := range first {
		if first[i].Start != second[i].Start || first[i].Raw != second[i].Raw {
			t.Errorf("match %d differs between calls", i)
		}
	}
}

func TestPattern_FindMalformed(t *testing.T) {
	huge := strings.Repeat("9", 400)
	m := Lookup("feet").Find(huge + " feet")
	if len(m) != 1 {
		t.Fatalf("expected one match, got %d", len(m))
	}
	if !errors.Is(m[0].Err, ErrMalformedMatch) {
		t.Errorf("Err = %v, want ErrMalformedMatch", m[0].Err)
	}
	if m[0].Values != nil {
		t.Errorf("Values = %v, want nil", m[0].Values)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("bad", rounding.Feet, Single, "m", `(`); err == nil {
		t.Error("expected compile error")
	}
	if _, err := New("groups", rounding.Feet, Range, "m", `(\d+)\s*yards`); err == nil {
		t.Error("expected group count error for range with one group")
	}

	yards := rounding.Family{Name: "yards", Factor: 0.9144, Plain: 1, PrecisePlaces: 2, Steps: []rounding.Step{{Below: 10, Places: 1}}}
	p, err := New("yards", yards, Single, "meters", `(\d+)\s*(?:yards|yd)`)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	m := p.Find("run 100 yards")
	if len(m) != 1 || m[0].Raw != "100 yards" {
		t.Fatalf("custom pattern match = %+v", m)
	}
	if got := p.Convert(100, rounding.Plain); got != 91.4 {
		t.Errorf("Convert(100) = %v, want 91.4", got)
	}
}

func TestMatch_Overlaps(t *testing.T) {
	a := Match{Start: 0, End: 8}
	b := Match{Start: 4, End: 8}
	c := Match{Start: 8, End: 12}
	if !a.Overlaps(b) {
		t.Error("a and b should overlap")
	}
	if a.Overlaps(c) {
		t.Error("a and c touch but do not overlap")
	}
}
