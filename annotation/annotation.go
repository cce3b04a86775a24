// Package annotation builds and inspects the replacement nodes that stand
// in for converted unit phrases.
//
// An annotation renders as:
//
//	<span class="metric-converted" data-original="5-7 feet" data-unit="feet-range">1.5–2.1 meters<span class="metric-tooltip">Original: 5-7 feet</span></span>
//
// The data-original attribute carries the exact source text so the node can
// be turned back into plain text at any time.
package annotation

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tsawler/metricate/rounding"
	"github.com/tsawler/metricate/units"
)

// Class names and attributes used on annotation nodes.
const (
	ClassConverted = "metric-converted"
	ClassTooltip   = "metric-tooltip"
	AttrOriginal   = "data-original"
	AttrUnit       = "data-unit"
)

// Annotation is the decoded content of an annotation node.
type Annotation struct {
	Display  string // text shown in place of the phrase
	Original string // verbatim source text
	Tooltip  string // text revealed on hover or focus
	Unit     string // catalog entry name, may be empty
}

// FromMatch renders a match in the given rounding mode.
func FromMatch(m units.Match, mode rounding.Mode) (Annotation, error) {
	if m.Err != nil {
		return Annotation{}, m.Err
	}
	if m.Pattern == nil || m.Raw == "" {
		return Annotation{}, fmt.Errorf("empty phrase: %w", units.ErrMalformedMatch)
	}
	want := 1
	if m.Pattern.Kind == units.Range {
		want = 2
	}
	if len(m.Values) != want {
		return Annotation{}, fmt.Errorf("%s: %d values for %q: %w", m.Pattern.Name, len(m.Values), m.Raw, units.ErrMalformedMatch)
	}

	display := make([]string, len(m.Values))
	precise := make([]string, len(m.Values))
	for i, v := range m.Values {
		display[i] = rounding.Format(m.Pattern.Convert(v, mode))
		precise[i] = rounding.Format(m.Pattern.Precise(v))
	}

	a := Annotation{
		Display:  strings.Join(display, "–") + " " + m.Pattern.Label,
		Original: m.Raw,
		Unit:     m.Pattern.Name,
	}
	if mode == rounding.Smart {
		a.Tooltip = m.Raw + " = " + strings.Join(precise, "–") + " " + m.Pattern.Label
	} else {
		a.Tooltip = "Original: " + m.Raw
	}
	return a, nil
}

// Node builds a new, detached annotation element.
func (a Annotation) Node() *html.Node {
	span := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: "class", Val: ClassConverted},
			{Key: AttrOriginal, Val: a.Original},
		},
	}
	if a.Unit != "" {
		span.Attr = append(span.Attr, html.Attribute{Key: AttrUnit, Val: a.Unit})
	}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: a.Display})

	tip := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: "class", Val: ClassTooltip}},
	}
	tip.AppendChild(&html.Node{Type: html.TextNode, Data: a.Tooltip})
	span.AppendChild(tip)
	return span
}

// IsAnnotation reports whether n is an annotation element.
func IsAnnotation(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && HasClass(n, ClassConverted)
}

// Inside reports whether n is an annotation or a direct child of one.
func Inside(n *html.Node) bool {
	if n == nil {
		return false
	}
	return IsAnnotation(n) || IsAnnotation(n.Parent)
}

// Decode reads an annotation element. It returns false if n is not an
// annotation or carries no original text.
func Decode(n *html.Node) (Annotation, bool) {
	if !IsAnnotation(n) {
		return Annotation{}, false
	}
	orig, ok := attr(n, AttrOriginal)
	if !ok || orig == "" {
		return Annotation{}, false
	}
	a := Annotation{Original: orig}
	a.Unit, _ = attr(n, AttrUnit)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			a.Display += c.Data
		case c.Type == html.ElementNode && HasClass(c, ClassTooltip):
			a.Tooltip = textContent(c)
		}
	}
	return a, true
}

// Restore returns a new text node carrying the text that n replaced. When
// the original text is missing the visible display text is used instead,
// and ok is false.
func Restore(n *html.Node) (text *html.Node, ok bool) {
	if a, decoded := Decode(n); decoded {
		return &html.Node{Type: html.TextNode, Data: a.Original}, true
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return &html.Node{Type: html.TextNode, Data: sb.String()}, false
}

// Find returns every annotation element under root in document order.
// Annotations nested inside other annotations are not reported.
func Find(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if IsAnnotation(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// HasClass reports whether the element's class attribute contains name.
func HasClass(n *html.Node, name string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, f := range strings.Fields(v) {
		if f == name {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
