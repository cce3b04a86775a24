package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tsawler/metricate/control"
)

// ErrClientClosed is returned by Send after Close.
var ErrClientClosed = errors.New("client closed")

// Client sends commands over one WebSocket connection. Sends are
// serialised so each response pairs with its command.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Dial connects to a control endpoint such as ws://127.0.0.1:7391/control.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Send writes one raw command and waits for its response. The context
// deadline, if any, bounds both the write and the read.
func (c *Client) Send(ctx context.Context, command []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	// Unblock the read if ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := c.conn.WriteMessage(websocket.TextMessage, command); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}
	_, resp, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("await response: %w", ctx.Err())
		}
		return nil, fmt.Errorf("await response: %w", err)
	}
	return resp, nil
}

// SendCommand encodes cmd, sends it and decodes the response.
func (c *Client) SendCommand(ctx context.Context, cmd control.Command) (control.Response, error) {
	data, err := cmd.Encode()
	if err != nil {
		return control.Response{}, fmt.Errorf("encode command: %w", err)
	}
	raw, err := c.Send(ctx, data)
	if err != nil {
		return control.Response{}, err
	}
	return control.DecodeResponse(raw)
}

// Close performs the closing handshake and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
