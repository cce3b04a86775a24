// Package engine converts imperial unit phrases in an HTML document into
// metric annotations and reverts them.
//
// An [Engine] owns the conversion [State] for one document. Every entry
// point runs to completion synchronously; the engine is not safe for
// concurrent use and expects its caller to serialise triggers (see the
// session package).
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"golang.org/x/net/html"

	"github.com/tsawler/metricate/annotation"
	"github.com/tsawler/metricate/htmldoc"
	"github.com/tsawler/metricate/rounding"
	"github.com/tsawler/metricate/scanner"
	"github.com/tsawler/metricate/units"
)

var (
	// ErrDetachedNode reports a splice whose target no longer had a parent.
	ErrDetachedNode = errors.New("detached node")

	// ErrMalformedMatch reports a phrase whose values could not be read.
	ErrMalformedMatch = units.ErrMalformedMatch

	// ErrMissingOriginal reports an annotation without its original text;
	// it is reverted to its display text instead.
	ErrMissingOriginal = errors.New("annotation has no original text")
)

// State is the conversion state of an engine.
type State struct {
	Enabled bool
	Mode    rounding.Mode
}

// DefaultState is enabled with plain rounding.
func DefaultState() State {
	return State{Enabled: true, Mode: rounding.Plain}
}

// Warning describes a recovered, non-fatal problem.
type Warning struct {
	Err  error  // wraps one of the Err* sentinels
	Text string // text that triggered it
}

// String returns a human-readable description.
func (w Warning) String() string {
	if w.Text == "" {
		return w.Err.Error()
	}
	return fmt.Sprintf("%v (%q)", w.Err, w.Text)
}

// Result summarises one engine operation.
type Result struct {
	Converted int // annotations inserted
	Reverted  int // annotations removed
	Leaves    int // text leaves examined
	Warnings  []Warning
}

func (r *Result) merge(o Result) {
	r.Converted += o.Converted
	r.Reverted += o.Reverted
	r.Leaves += o.Leaves
	r.Warnings = append(r.Warnings, o.Warnings...)
}

func (r *Result) warn(err error, text string) {
	r.Warnings = append(r.Warnings, Warning{Err: err, Text: text})
}

// Engine converts and reverts unit phrases in one document.
type Engine struct {
	doc     *htmldoc.Document
	state   State
	catalog []*units.Pattern
	scan    *scanner.Scanner
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithState sets the initial state. The default is [DefaultState].
func WithState(s State) Option {
	return func(e *Engine) { e.state = s }
}

// WithCatalog replaces the unit catalog.
func WithCatalog(patterns []*units.Pattern) Option {
	return func(e *Engine) {
		e.catalog = append([]*units.Pattern(nil), patterns...)
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMarks shares a mark set with the engine.
func WithMarks(m *scanner.Marks) Option {
	return func(e *Engine) { e.scan = scanner.New(m) }
}

// New returns an engine for doc. Nothing is converted until an operation
// is called.
func New(doc *htmldoc.Document, opts ...Option) *Engine {
	e := &Engine{
		doc:     doc,
		state:   DefaultState(),
		catalog: units.Catalog(),
		scan:    scanner.New(nil),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Document returns the document the engine operates on.
func (e *Engine) Document() *htmldoc.Document {
	return e.doc
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Marks returns the engine's processed-leaf set.
func (e *Engine) Marks() *scanner.Marks {
	return e.scan.Marks()
}

// ConvertAll reverts every annotation and, when enabled, rescans the whole
// document under the current rounding mode.
func (e *Engine) ConvertAll() Result {
	res := e.RevertAll()
	if !e.state.Enabled {
		return res
	}
	res.merge(e.scanFrom(e.doc.Root()))
	e.logger.Debug("converted document",
		slog.Int("converted", res.Converted),
		slog.Int("reverted", res.Reverted),
		slog.Int("leaves", res.Leaves),
		slog.String("mode", e.state.Mode.String()))
	return res
}

// RevertAll replaces every annotation with its original text and merges the
// text back into the neighbouring leaves. It is always safe to call.
func (e *Engine) RevertAll() Result {
	var res Result
	var parents []*html.Node
	seen := make(map[*html.Node]bool)

	for _, n := range annotation.Find(e.doc.Root()) {
		parent := n.Parent
		if parent == nil {
			res.warn(ErrDetachedNode, "")
			continue
		}
		text, ok := annotation.Restore(n)
		if !ok {
			res.warn(ErrMissingOriginal, text.Data)
		}
		if err := e.doc.ReplaceChild(parent, text, n); err != nil {
			res.warn(fmt.Errorf("revert: %w: %v", ErrDetachedNode, err), text.Data)
			continue
		}
		res.Reverted++
		if !seen[parent] {
			seen[parent] = true
			parents = append(parents, parent)
		}
	}
	for _, p := range parents {
		e.doc.MergeText(p)
	}
	e.scan.Marks().Reset()

	if res.Reverted > 0 {
		e.logger.Debug("reverted annotations", slog.Int("reverted", res.Reverted))
	}
	return res
}

// ScanSubtree converts the eligible leaves under n without reverting
// anything. It does nothing while the engine is disabled.
func (e *Engine) ScanSubtree(n *html.Node) Result {
	if !e.state.Enabled || n == nil {
		return Result{}
	}
	return e.scanFrom(n)
}

// SetEnabled changes the enabled flag, reverting on disable and converting
// on enable. Setting the current value does nothing.
func (e *Engine) SetEnabled(enabled bool) Result {
	if e.state.Enabled == enabled {
		return Result{}
	}
	e.state.Enabled = enabled
	e.logger.Debug("engine state changed", slog.Bool("enabled", enabled))
	if !enabled {
		return e.RevertAll()
	}
	return e.ConvertAll()
}

// SetMode changes the rounding mode. While enabled the document is
// reconverted under the new mode; while disabled the mode is only stored.
func (e *Engine) SetMode(mode rounding.Mode) Result {
	if e.state.Mode == mode {
		return Result{}
	}
	e.state.Mode = mode
	e.logger.Debug("rounding mode changed", slog.String("mode", mode.String()))
	if !e.state.Enabled {
		return Result{}
	}
	return e.ConvertAll()
}

func (e *Engine) scanFrom(root *html.Node) Result {
	var res Result
	res.Leaves = e.scan.Walk(root, func(leaf *html.Node) {
		e.processLeaf(leaf, &res)
	})
	for _, w := range res.Warnings {
		e.logger.Debug("conversion warning", slog.String("warning", w.String()))
	}
	return res
}

type claim struct {
	match units.Match
	ann   annotation.Annotation
}

// processLeaf converts the phrases in one text leaf. Matches are collected
// against a snapshot of the text, pattern by pattern in catalog order; a
// match overlapping text already claimed by an earlier pattern is dropped.
// The claimed spans are then spliced in one pass.
func (e *Engine) processLeaf(leaf *html.Node, res *Result) {
	text := leaf.Data
	marks := e.scan.Marks()

	var claims []claim
	for _, p := range e.catalog {
		for _, m := range p.Find(text) {
			if overlapsAny(m, claims) {
				continue
			}
			ann, err := annotation.FromMatch(m, e.state.Mode)
			if err != nil {
				res.warn(err, m.Raw)
				continue
			}
			claims = append(claims, claim{match: m, ann: ann})
		}
	}
	if len(claims) == 0 {
		marks.Mark(leaf)
		return
	}

	parent := leaf.Parent
	if parent == nil {
		res.warn(ErrDetachedNode, text)
		return
	}
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].match.Start < claims[j].match.Start
	})

	pos := 0
	for _, c := range claims {
		if c.match.Start > pos {
			gap := htmldoc.NewText(text[pos:c.match.Start])
			if err := e.doc.InsertBefore(parent, gap, leaf); err != nil {
				res.warn(fmt.Errorf("%w: %v", ErrDetachedNode, err), text)
				return
			}
			marks.Mark(gap)
		}
		if err := e.doc.InsertBefore(parent, c.ann.Node(), leaf); err != nil {
			res.warn(fmt.Errorf("%w: %v", ErrDetachedNode, err), c.match.Raw)
			return
		}
		res.Converted++
		pos = c.match.End
	}

	if rest := text[pos:]; rest != "" {
		leaf.Data = rest
		marks.Mark(leaf)
		return
	}
	marks.Forget(leaf)
	if err := e.doc.RemoveChild(parent, leaf); err != nil {
		res.warn(fmt.Errorf("%w: %v", ErrDetachedNode, err), text)
	}
}

func overlapsAny(m units.Match, claims []claim) bool {
	for _, c := range claims {
		if m.Overlaps(c.match) {
			return true
		}
	}
	return false
}
