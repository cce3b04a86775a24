package annotation

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/tsawler/metricate/rounding"
	"github.com/tsawler/metricate/units"
)

func findOne(t *testing.T, pattern, text string) units.Match {
	t.Helper()
	m := units.Lookup(pattern).Find(text)
	if len(m) != 1 {
		t.Fatalf("%s.Find(%q) = %d matches, want 1", pattern, text, len(m))
	}
	return m[0]
}

func TestFromMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		text    string
		mode    rounding.Mode
		display string
		tooltip string
	}{
		{"plain single", "feet", "10 feet", rounding.Plain, "3 meters", "Original: 10 feet"},
		{"smart single", "feet", "5 feet", rounding.Smart, "1.5 meters", "5 feet = 1.52 meters"},
		{"plain range", "feet-range", "5-7 feet", rounding.Plain, "1.5–2.1 meters", "Original: 5-7 feet"},
		{"smart range", "feet-range", "5-7 feet", rounding.Smart, "1.5–2.1 meters", "5-7 feet = 1.52–2.13 meters"},
		{"temperature", "fahrenheit", "32°F", rounding.Plain, "0 °C", "Original: 32°F"},
		{"weight", "pounds", "1 lb", rounding.Plain, "0.45 kg", "Original: 1 lb"},
		{"smart miles", "miles", "150 miles", rounding.Smart, "240 km", "150 miles = 241.4 km"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := FromMatch(findOne(t, tt.pattern, tt.text), tt.mode)
			if err != nil {
				t.Fatalf("FromMatch() failed: %v", err)
			}
			if a.Display != tt.display {
				t.Errorf("Display = %q, want %q", a.Display, tt.display)
			}
			if a.Tooltip != tt.tooltip {
				t.Errorf("Tooltip = %q, want %q", a.Tooltip, tt.tooltip)
			}
			if a.Original != tt.text {
				t.Errorf("Original = %q, want %q", a.Original, tt.text)
			}
			if a.Unit != tt.pattern {
				t.Errorf("Unit = %q, want %q", a.Unit, tt.pattern)
			}
		})
	}
}

func TestFromMatch_Malformed(t *testing.T) {
	p := units.Lookup("feet")
	cases := []units.Match{
		{Pattern: p, Raw: ""},
		{Pattern: p, Raw: "x feet", Values: nil},
		{Pattern: p, Raw: "1 feet", Err: units.ErrMalformedMatch},
	}
	for i, m := range cases {
		if _, err := FromMatch(m, rounding.Plain); !errors.Is(err, units.ErrMalformedMatch) {
			t.Errorf("case %d: err = %v, want ErrMalformedMatch", i, err)
		}
	}
}

func TestNode_DecodeRoundTrip(t *testing.T) {
	a := Annotation{Display: "9 meters", Original: `30 "feet"`, Tooltip: "Original: 30 \"feet\"", Unit: "feet"}
	n := a.Node()

	if !IsAnnotation(n) {
		t.Fatal("Node() is not recognized as an annotation")
	}
	if !Inside(n.FirstChild) || !Inside(n) {
		t.Error("Inside() should be true for the node and its children")
	}

	got, ok := Decode(n)
	if !ok {
		t.Fatal("Decode() failed")
	}
	if got != a {
		t.Errorf("Decode() = %+v, want %+v", got, a)
	}

	restored, ok := Restore(n)
	if !ok || restored.Type != html.TextNode || restored.Data != a.Original {
		t.Errorf("Restore() = %q, %v", restored.Data, ok)
	}
}

func TestDecode_SurvivesRender(t *testing.T) {
	a := Annotation{Display: "1 km", Original: "0.6 <mi>", Tooltip: "Original: 0.6 <mi>"}
	body := &html.Node{Type: html.ElementNode, Data: "body"}
	body.AppendChild(a.Node())

	var buf bytes.Buffer
	if err := html.Render(&buf, body); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	doc, err := html.Parse(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	found := Find(doc)
	if len(found) != 1 {
		t.Fatalf("Find() = %d annotations, want 1", len(found))
	}
	got, ok := Decode(found[0])
	if !ok || got.Original != a.Original || got.Display != a.Display || got.Tooltip != a.Tooltip {
		t.Errorf("Decode() after render = %+v", got)
	}
}

func TestRestore_MissingOriginal(t *testing.T) {
	n := Annotation{Display: "3 meters", Tooltip: "x"}.Node()
	restored, ok := Restore(n)
	if ok {
		t.Error("Restore() should report missing original")
	}
	if restored.Data != "3 meters" {
		t.Errorf("fallback text = %q, want display text", restored.Data)
	}
}

func TestHasClass(t *testing.T) {
	n := &html.Node{Type: html.ElementNode, Data: "span", Attr: []html.Attribute{{Key: "class", Val: "a metric-converted  b"}}}
	if !HasClass(n, ClassConverted) {
		t.Error("HasClass should find token among others")
	}
	if HasClass(n, "metric") {
		t.Error("HasClass should not match partial tokens")
	}
	if IsAnnotation(nil) || Inside(nil) {
		t.Error("nil nodes are never annotations")
	}
}
