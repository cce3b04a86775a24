// Package htmldoc provides a mutable HTML document tree that reports its own
// changes.
//
// A [Document] wraps a parsed golang.org/x/net/html tree. Structural edits
// made through the Document (append, insert, remove, replace) are queued as
// [Mutation] records and delivered to observers in batches by [Document.Flush],
// in the order they were made.
package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is an HTML tree plus its mutation bookkeeping. A Document is not
// safe for concurrent use.
type Document struct {
	root  *html.Node
	title string

	pending    []Mutation
	observers  []observer
	nextID     int
	delivering bool
}

// Open opens an HTML file for reading.
func Open(filename string) (*Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return OpenReader(f)
}

// OpenReader parses HTML from an io.Reader.
func OpenReader(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return New(root), nil
}

// Parse parses an HTML string.
func Parse(s string) (*Document, error) {
	return OpenReader(strings.NewReader(s))
}

// New wraps an existing tree. The Document takes ownership of root.
func New(root *html.Node) *Document {
	d := &Document{root: root}
	if head := findElement(root, "head"); head != nil {
		if t := findElement(head, "title"); t != nil {
			d.title = strings.TrimSpace(TextContent(t))
		}
	}
	return d
}

// Root returns the root node of the tree.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or the root if the tree has none.
func (d *Document) Body() *html.Node {
	if body := findElement(d.root, "body"); body != nil {
		return body
	}
	return d.root
}

// Title returns the document title captured at parse time.
func (d *Document) Title() string {
	return d.title
}

// Contains reports whether n is attached to this document's tree.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// ParseFragment parses an HTML fragment in the context of the body element.
// The returned nodes are detached.
func (d *Document) ParseFragment(fragment string) ([]*html.Node, error) {
	ctx := d.Body()
	if ctx.Type != html.ElementNode {
		ctx = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}
	return nodes, nil
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("rendering HTML: %w", err)
	}
	return nil
}

// HTML returns the rendered document.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Text returns the concatenated text of the body, skipping script and
// style content.
func (d *Document) Text() string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && shouldSkipElement(n.Data) {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.Body())
	return sb.String()
}

// TextContent returns the concatenated text of n and all its descendants.
func TextContent(n *html.Node) string {
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

// NewText returns a detached text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// shouldSkipElement returns true for elements whose text is not document prose.
func shouldSkipElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tagName string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tagName {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := findElement(c, tagName); result != nil {
			return result
		}
	}
	return nil
}
