// Package session serialises everything that touches one document.
//
// The engine, monitor and control surface are single-threaded. A Session
// owns them and runs a loop goroutine that handles control commands and
// document edits one at a time; after each event queued mutation records
// are flushed so the change monitor sees new content before the next event
// starts.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tsawler/metricate/control"
	"github.com/tsawler/metricate/engine"
	"github.com/tsawler/metricate/htmldoc"
	"github.com/tsawler/metricate/internal/logging"
	"github.com/tsawler/metricate/monitor"
	"github.com/tsawler/metricate/settings"
)

var (
	// ErrClosed is returned by calls made after the loop has stopped.
	ErrClosed = errors.New("session closed")

	// ErrRunning is returned by a second call to Run.
	ErrRunning = errors.New("session already running")
)

type event struct {
	command []byte
	edit    func(*htmldoc.Document) error
	reply   chan reply
}

type reply struct {
	data []byte
	err  error
}

// Session owns one document and its conversion pipeline.
type Session struct {
	id      string
	doc     *htmldoc.Document
	eng     *engine.Engine
	mon     *monitor.Monitor
	surface *control.Surface
	logger  *slog.Logger

	events  chan event
	done    chan struct{}
	started atomic.Bool
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	engineOpts []engine.Option
}

// WithLogger sets the logger shared by the session's components.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEngineOptions passes options through to engine.New.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// New assembles a session for doc. Nothing runs until Run is called.
func New(doc *htmldoc.Document, store settings.Store, opts ...Option) *Session {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	id := uuid.NewString()
	logger := o.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(slog.String("session_id", id))

	eng := engine.New(doc, append([]engine.Option{engine.WithLogger(logging.NewComponentLogger(logger, "engine"))}, o.engineOpts...)...)
	s := &Session{
		id:      id,
		doc:     doc,
		eng:     eng,
		mon:     monitor.New(eng, logger),
		surface: control.New(eng, store, logger),
		logger:  logging.NewComponentLogger(logger, "session"),
		events:  make(chan event),
		done:    make(chan struct{}),
	}
	s.mon.OnBatch = func(r engine.Result) {
		if r.Converted > 0 || len(r.Warnings) > 0 {
			s.logger.Debug("mutation batch handled",
				slog.Int("converted", r.Converted),
				slog.Int("warnings", len(r.Warnings)))
		}
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Run loads settings, performs the initial conversion, starts the change
// monitor and then handles events until ctx is cancelled. A settings load
// failure is logged and the session continues with default settings.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(s.done)

	res, err := s.surface.Load(ctx)
	if err != nil {
		s.logger.Warn("using default settings", slog.String("error", err.Error()))
		res = s.eng.ConvertAll()
	}
	s.logger.Info("session started",
		slog.Int("converted", res.Converted),
		slog.Int("leaves", res.Leaves))

	s.mon.Start()
	defer s.mon.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped")
			return nil
		case ev := <-s.events:
			ev.reply <- s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev event) reply {
	var r reply
	switch {
	case ev.command != nil:
		r.data = s.surface.HandleJSON(ctx, ev.command)
	case ev.edit != nil:
		r.err = ev.edit(s.doc)
	}
	s.doc.Flush()
	return r
}

// Do runs one wire command on the loop and returns the wire response.
func (s *Session) Do(ctx context.Context, command []byte) ([]byte, error) {
	if command == nil {
		command = []byte{}
	}
	r, err := s.submit(ctx, event{command: command})
	if err != nil {
		return nil, err
	}
	return r.data, nil
}

// Edit runs fn on the loop with exclusive access to the document, then
// delivers the resulting mutation records so added content is converted.
func (s *Session) Edit(ctx context.Context, fn func(*htmldoc.Document) error) error {
	if fn == nil {
		return nil
	}
	r, err := s.submit(ctx, event{edit: fn})
	if err != nil {
		return err
	}
	return r.err
}

// HTML renders the document on the loop.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var out string
	err := s.Edit(ctx, func(d *htmldoc.Document) error {
		var err error
		out, err = d.HTML()
		return err
	})
	return out, err
}

func (s *Session) submit(ctx context.Context, ev event) (reply, error) {
	ev.reply = make(chan reply, 1)
	select {
	case s.events <- ev:
	case <-s.done:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, fmt.Errorf("submit: %w", ctx.Err())
	}
	select {
	case r := <-ev.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, fmt.Errorf("await reply: %w", ctx.Err())
	}
}
