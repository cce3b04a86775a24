// Package monitor feeds content added to a document after the initial scan
// back into the conversion engine.
package monitor

import (
	"io"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/tsawler/metricate/annotation"
	"github.com/tsawler/metricate/engine"
	"github.com/tsawler/metricate/htmldoc"
)

// Monitor subscribes to a document's mutation stream and converts newly
// added subtrees. Only the added subtrees are scanned; existing annotations
// elsewhere are left alone.
type Monitor struct {
	eng    *engine.Engine
	doc    *htmldoc.Document
	logger *slog.Logger
	cancel func()

	// OnBatch, if set, receives the combined result of each batch.
	OnBatch func(engine.Result)
}

// New returns a stopped monitor for the engine's document.
func New(eng *engine.Engine, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Monitor{
		eng:    eng,
		doc:    eng.Document(),
		logger: logger.With(slog.String("component", "monitor")),
	}
}

// Start subscribes to mutation records. Calling Start twice is a no-op.
func (m *Monitor) Start() {
	if m.cancel != nil {
		return
	}
	m.cancel = m.doc.Observe(m.Handle)
}

// Stop unsubscribes.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Running reports whether the monitor is subscribed.
func (m *Monitor) Running() bool {
	return m.cancel != nil
}

// Handle processes one batch of mutation records in order.
func (m *Monitor) Handle(batch []htmldoc.Mutation) {
	if !m.eng.State().Enabled {
		return
	}
	var total engine.Result
	for _, rec := range batch {
		for _, n := range rec.Added {
			if !m.eligible(n) {
				continue
			}
			res := m.eng.ScanSubtree(n)
			total.Converted += res.Converted
			total.Leaves += res.Leaves
			total.Warnings = append(total.Warnings, res.Warnings...)
		}
	}
	if total.Converted > 0 {
		m.logger.Debug("converted added content",
			slog.Int("records", len(batch)),
			slog.Int("converted", total.Converted))
	}
	if m.OnBatch != nil {
		m.OnBatch(total)
	}
}

// eligible rejects engine-inserted content and nodes removed again before
// the batch was delivered.
func (m *Monitor) eligible(n *html.Node) bool {
	if n == nil || annotation.Inside(n) {
		return false
	}
	return m.doc.Contains(n)
}
