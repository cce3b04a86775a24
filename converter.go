package metricate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/tsawler/metricate/annotation"
	"github.com/tsawler/metricate/engine"
	"github.com/tsawler/metricate/format"
	"github.com/tsawler/metricate/htmldoc"
	"github.com/tsawler/metricate/rounding"
	"github.com/tsawler/metricate/units"
)

// ErrUnknownUnit is returned when Units names an entry that is not in the
// catalog.
var ErrUnknownUnit = errors.New("unknown unit")

// Annotation is the decoded content of one converted phrase.
type Annotation = annotation.Annotation

// Converter provides a fluent interface for converting documents.
// Each configuration method returns a new Converter instance, making it
// safe to share a base configuration and allowing method chaining.
type Converter struct {
	// Source (only one is set)
	filename string
	data     []byte
	hasData  bool
	doc      *htmldoc.Document

	// Configuration
	options ConvertOptions

	// Accumulated error (fail-fast)
	err error
}

// clone creates a shallow copy of the Converter with a deep copy of options.
// The source bytes and document are shared.
func (c *Converter) clone() *Converter {
	return &Converter{
		filename: c.filename,
		data:     c.data,
		hasData:  c.hasData,
		doc:      c.doc,
		options:  c.options.clone(),
		err:      c.err,
	}
}

// Smart selects smart rounding, which rounds to figures a person would say.
//
// Example:
//
//	out, _, _ := metricate.FromString("<p>150 miles</p>").Smart().HTML()
//	// out contains "240 km"
func (c *Converter) Smart() *Converter {
	return c.Mode(rounding.Smart)
}

// Plain selects plain rounding, which rounds each unit family to its fixed
// number of decimal places. This is the default.
func (c *Converter) Plain() *Converter {
	return c.Mode(rounding.Plain)
}

// Mode sets the rounding mode.
func (c *Converter) Mode(m rounding.Mode) *Converter {
	newC := c.clone()
	newC.options.mode = m
	return newC
}

// Units restricts conversion to the named catalog entries, for example
// "feet", "feet-range" or "fahrenheit". Calling Units with no names
// restores the full catalog. An unknown name makes every terminal
// operation fail with ErrUnknownUnit.
func (c *Converter) Units(names ...string) *Converter {
	newC := c.clone()
	if len(names) == 0 {
		newC.options.units = nil
		return newC
	}
	for _, name := range names {
		if units.Lookup(name) == nil && newC.err == nil {
			newC.err = fmt.Errorf("%w %q", ErrUnknownUnit, name)
		}
	}
	newC.options.units = append([]string(nil), names...)
	return newC
}

// Format overrides format detection for the input.
func (c *Converter) Format(f format.Format) *Converter {
	newC := c.clone()
	newC.options.format = f
	return newC
}

// ContentType supplies a Content-Type header value used to pick the input
// character encoding.
func (c *Converter) ContentType(ct string) *Converter {
	newC := c.clone()
	newC.options.contentType = ct
	return newC
}

// Logger sets the logger that receives conversion debug output.
func (c *Converter) Logger(l *slog.Logger) *Converter {
	newC := c.clone()
	newC.options.logger = l
	return newC
}

// ============================================================================
// Terminal Operations
// ============================================================================

// HTML converts the document and returns it serialised.
func (c *Converter) HTML() (string, []Warning, error) {
	doc, warnings, err := c.convert()
	if err != nil {
		return "", nil, err
	}
	out, err := doc.HTML()
	if err != nil {
		return "", warnings, err
	}
	return out, warnings, nil
}

// Text converts the document and returns its visible text, with each
// phrase replaced by its metric value and tooltip text omitted.
func (c *Converter) Text() (string, []Warning, error) {
	doc, warnings, err := c.convert()
	if err != nil {
		return "", nil, err
	}
	return visibleText(doc.Body()), warnings, nil
}

// Document converts the document and returns the converted tree.
func (c *Converter) Document() (*htmldoc.Document, []Warning, error) {
	return c.convert()
}

// Annotations converts the document and returns every annotation in
// document order.
//
// Example:
//
//	anns, _, _ := metricate.Open("page.html").Annotations()
//	for _, a := range anns {
//	    fmt.Printf("%s -> %s\n", a.Original, a.Display)
//	}
func (c *Converter) Annotations() ([]Annotation, []Warning, error) {
	doc, warnings, err := c.convert()
	if err != nil {
		return nil, nil, err
	}
	return collect(doc), warnings, nil
}

// Revert replaces every annotation in the input with its original text and
// returns the result. Unit selection and rounding mode do not apply.
func (c *Converter) Revert() (string, []Warning, error) {
	doc, err := c.load()
	if err != nil {
		return "", nil, err
	}
	res := c.engine(doc).RevertAll()
	out, err := doc.HTML()
	if err != nil {
		return "", res.Warnings, err
	}
	return out, res.Warnings, nil
}

// Existing returns the annotations already present in the input without
// converting anything.
func (c *Converter) Existing() ([]Annotation, error) {
	doc, err := c.load()
	if err != nil {
		return nil, err
	}
	return collect(doc), nil
}

// Input returns the parsed input document without converting anything.
func (c *Converter) Input() (*htmldoc.Document, error) {
	return c.load()
}

// OriginalText returns the visible text of the input with any existing
// annotations reverted and nothing converted.
func (c *Converter) OriginalText() (string, error) {
	doc, err := c.load()
	if err != nil {
		return "", err
	}
	c.engine(doc).RevertAll()
	return visibleText(doc.Body()), nil
}

// ============================================================================
// Internals
// ============================================================================

func (c *Converter) convert() (*htmldoc.Document, []Warning, error) {
	doc, err := c.load()
	if err != nil {
		return nil, nil, err
	}
	res := c.engine(doc).ConvertAll()
	return doc, res.Warnings, nil
}

func (c *Converter) engine(doc *htmldoc.Document) *engine.Engine {
	opts := []engine.Option{
		engine.WithState(engine.State{Enabled: true, Mode: c.options.mode}),
		engine.WithLogger(c.options.logger),
	}
	if c.options.units != nil {
		opts = append(opts, engine.WithCatalog(selectUnits(c.options.units)))
	}
	return engine.New(doc, opts...)
}

// selectUnits filters the catalog down to names. Catalog order is kept so
// range patterns are still tried before the single patterns they contain.
func selectUnits(names []string) []*units.Pattern {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}
	var patterns []*units.Pattern
	for _, p := range units.Catalog() {
		if want[p.Name] {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// load returns the document to operate on. Sources other than an existing
// document are parsed afresh on every call.
func (c *Converter) load() (*htmldoc.Document, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.doc != nil {
		return c.doc, nil
	}

	var r io.Reader
	f := c.options.format
	switch {
	case c.hasData:
		r = bytes.NewReader(c.data)
	case c.filename != "":
		file, err := os.Open(c.filename)
		if err != nil {
			return nil, fmt.Errorf("opening file: %w", err)
		}
		defer file.Close()
		r = file
		if f == format.Unknown {
			f = format.Detect(c.filename)
		}
	default:
		return nil, fmt.Errorf("no input specified")
	}

	if f == format.Unknown {
		detected, rest, err := format.DetectFromReader(r)
		if err != nil {
			return nil, err
		}
		f, r = detected, rest
	}
	if f == format.Unknown {
		return nil, fmt.Errorf("unsupported input format")
	}

	ur, err := format.UTF8Reader(r, c.options.contentType)
	if err != nil {
		return nil, err
	}
	if f == format.Text {
		data, err := io.ReadAll(ur)
		if err != nil {
			return nil, fmt.Errorf("reading text: %w", err)
		}
		return htmldoc.Parse(textToHTML(string(data)))
	}
	return htmldoc.OpenReader(ur)
}

var blankLines = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

// textToHTML wraps each blank-line separated paragraph of s in a <p>.
func textToHTML(s string) string {
	var sb strings.Builder
	sb.WriteString("<html><head></head><body>")
	for _, para := range blankLines.Split(s, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(para))
		sb.WriteString("</p>")
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

// visibleText is the body text a reader sees: script, style and tooltip
// content is left out.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
			if annotation.HasClass(n, annotation.ClassTooltip) {
				return
			}
		}
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

func collect(doc *htmldoc.Document) []Annotation {
	nodes := annotation.Find(doc.Root())
	out := make([]Annotation, 0, len(nodes))
	for _, n := range nodes {
		if a, ok := annotation.Decode(n); ok {
			out = append(out, a)
		}
	}
	return out
}
