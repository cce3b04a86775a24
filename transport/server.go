// Package transport carries control commands over WebSocket text frames.
//
// Each inbound frame holds one JSON command; the server replies on the same
// connection with one JSON response frame, in order.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tsawler/metricate/control"
	"github.com/tsawler/metricate/internal/logging"
)

// DefaultMaxFrameSize bounds the size of one inbound command.
const DefaultMaxFrameSize = 1 << 20

// Handler runs one wire command. session.Session satisfies it.
type Handler interface {
	Do(ctx context.Context, command []byte) ([]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, command []byte) ([]byte, error)

// Do calls f.
func (f HandlerFunc) Do(ctx context.Context, command []byte) ([]byte, error) {
	return f(ctx, command)
}

// Server accepts WebSocket connections and feeds their frames to a Handler.
type Server struct {
	handler  Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader
	maxFrame int64

	mu     sync.Mutex
	conns  map[string]*websocket.Conn
	closed bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logging.NewComponentLogger(l, "transport") }
}

// WithMaxFrameSize bounds inbound frames; larger frames close the connection.
func WithMaxFrameSize(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxFrame = n
		}
	}
}

// WithCheckOrigin replaces the origin check. By default only same-host
// origins and requests without an Origin header are accepted.
func WithCheckOrigin(fn func(r *http.Request) bool) ServerOption {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// NewServer returns a server dispatching to h.
func NewServer(h Handler, opts ...ServerOption) *Server {
	s := &Server{
		handler:  h,
		logger:   logging.NewComponentLogger(nil, "transport"),
		maxFrame: DefaultMaxFrameSize,
		conns:    make(map[string]*websocket.Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and serves the connection until the peer
// closes it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", slog.String("error", err.Error()))
		return
	}
	id := uuid.NewString()
	if !s.register(id, conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	defer s.unregister(id)

	logger := s.logger.With(slog.String("conn_id", id), slog.String("remote", r.RemoteAddr))
	logger.Info("connection opened")
	conn.SetReadLimit(s.maxFrame)

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("connection lost", slog.String("error", err.Error()))
			} else {
				logger.Info("connection closed")
			}
			return
		}
		var resp []byte
		if kind != websocket.TextMessage {
			resp = control.Response{Error: "only text frames are accepted"}.Encode()
		} else {
			resp, err = s.handler.Do(r.Context(), msg)
			if err != nil {
				logger.Warn("command failed", slog.String("error", err.Error()))
				resp = control.Response{Error: err.Error()}.Encode()
			}
		}
		if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
			logger.Warn("write failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (s *Server) register(id string, c *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[id] = c
	return true
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	c := s.conns[id]
	delete(s.conns, id)
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close sends a close frame to every open connection and refuses new ones.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"), deadline)
		_ = c.Close()
	}
	return nil
}

// ListenAndServe serves the control endpoint at path on addr until ctx is
// cancelled. The listening address is reported through ready, if non-nil,
// once the listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr, path string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(path, s)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("control channel listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("path", path))
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	_ = s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
