// Package scanner walks an HTML tree and selects the text leaves that may
// contain unit phrases.
//
// The walk is depth-first and pre-order. Text leaves with visible content
// and no mark are handed to a visit function; annotation elements and
// non-prose containers (scripts, styles, form inputs, code) are skipped
// together with everything below them.
package scanner

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/tsawler/metricate/annotation"
)

// SkipClass excludes an element and its subtree from scanning.
const SkipClass = "metric-skip"

// Visit is called for each eligible text leaf.
type Visit func(leaf *html.Node)

// Scanner carries the mark set consulted during walks.
type Scanner struct {
	marks *Marks
}

// New returns a Scanner over the given mark set. A nil set is replaced by a
// fresh one.
func New(marks *Marks) *Scanner {
	if marks == nil {
		marks = NewMarks()
	}
	return &Scanner{marks: marks}
}

// Marks returns the mark set used by the scanner.
func (s *Scanner) Marks() *Marks {
	return s.marks
}

// Walk visits every eligible text leaf under root, root included. It
// returns the number of leaves visited.
func (s *Scanner) Walk(root *html.Node, visit Visit) int {
	if root == nil {
		return 0
	}
	return s.walk(root, visit)
}

func (s *Scanner) walk(n *html.Node, visit Visit) int {
	switch n.Type {
	case html.TextNode:
		if s.Eligible(n) {
			visit(n)
			return 1
		}
		return 0
	case html.ElementNode:
		if SkipElement(n) {
			return 0
		}
	case html.DocumentNode:
	default:
		return 0
	}

	// Snapshot children; visiting a leaf splices siblings around it.
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	count := 0
	for _, c := range children {
		if c.Parent != n {
			continue
		}
		count += s.walk(c, visit)
	}
	return count
}

// Eligible reports whether a text leaf should be handed to the matcher.
func (s *Scanner) Eligible(n *html.Node) bool {
	if n == nil || n.Type != html.TextNode {
		return false
	}
	if strings.TrimSpace(n.Data) == "" {
		return false
	}
	return !s.marks.Has(n)
}

// SkipElement reports whether an element's subtree is excluded from
// scanning: annotations, non-prose containers, editable regions and
// elements carrying an opt-out class.
func SkipElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if annotation.IsAnnotation(n) {
		return true
	}
	switch n.Data {
	case "head", "title", "script", "style", "noscript", "template",
		"textarea", "input", "select", "option",
		"code", "pre", "kbd", "samp", "var",
		"svg", "math", "iframe", "object", "embed":
		return true
	}
	for _, a := range n.Attr {
		if a.Namespace != "" {
			continue
		}
		switch a.Key {
		case "contenteditable":
			if v := strings.ToLower(a.Val); v == "" || v == "true" || v == "plaintext-only" {
				return true
			}
		case "class":
			for _, f := range strings.Fields(a.Val) {
				if f == SkipClass || f == "notranslate" {
					return true
				}
			}
		}
	}
	return false
}
