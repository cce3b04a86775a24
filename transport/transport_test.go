package transport

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/metricate/control"
	"github.com/tsawler/metricate/htmldoc"
	"github.com/tsawler/metricate/session"
	"github.com/tsawler/metricate/settings"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo() Handler {
	return HandlerFunc(func(_ context.Context, cmd []byte) ([]byte, error) {
		return append([]byte("echo:"), cmd...), nil
	})
}

func TestServer_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewServer(echo()))
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	for _, msg := range []string{"one", "two", "three"} {
		resp, err := c.Send(context.Background(), []byte(msg))
		require.NoError(t, err)
		assert.Equal(t, "echo:"+msg, string(resp))
	}
}

func TestServer_HandlerError(t *testing.T) {
	h := HandlerFunc(func(context.Context, []byte) ([]byte, error) {
		return nil, errors.New("session closed")
	})
	srv := httptest.NewServer(NewServer(h))
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.SendCommand(context.Background(), control.Command{Action: control.ActionStatus})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "session closed", resp.Error)
}

func TestServer_RejectsBinaryFrames(t *testing.T) {
	srv := httptest.NewServer(NewServer(echo()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	resp, err := control.DecodeResponse(data)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "text frames")
}

func TestServer_FrameLimit(t *testing.T) {
	srv := httptest.NewServer(NewServer(echo(), WithMaxFrameSize(16)))
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Send(ctx, []byte(strings.Repeat("x", 64)))
	assert.Error(t, err)
}

func TestServer_CloseDisconnectsClients(t *testing.T) {
	s := NewServer(echo())
	srv := httptest.NewServer(s)
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Send(context.Background(), []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Connections())

	require.NoError(t, s.Close())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Send(ctx, []byte("again"))
	assert.Error(t, err)
}

func TestClient_SendAfterClose(t *testing.T) {
	srv := httptest.NewServer(NewServer(echo()))
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Send(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_ContextCancel(t *testing.T) {
	block := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		<-block
		return []byte("late"), nil
	})
	srv := httptest.NewServer(NewServer(h))
	defer srv.Close()
	defer close(block)

	c, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err = c.Send(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionOverWebSocket(t *testing.T) {
	doc, err := htmldoc.Parse(`<html><body><p>It is 150 miles away.</p></body></html>`)
	require.NoError(t, err)
	sess := session.New(doc, settings.NewMemory(settings.Default()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	srv := httptest.NewServer(NewServer(sess))
	defer srv.Close()

	c, err := Dial(ctx, wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.SendCommand(ctx, control.Command{
		Action: control.ActionToggle,
		Patch:  settings.Patch{SmartRounding: settings.Bool(true)},
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.NotNil(t, resp.NewSettings)
	assert.True(t, resp.NewSettings.SmartRounding)

	out, err := sess.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "240 km")

	raw, err := c.Send(ctx, []byte(`{"action":"nope"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"unknown action \"nope\""}`, string(raw))
}

func TestListenAndServe(t *testing.T) {
	s := NewServer(echo())
	ctx, cancel := context.WithCancel(context.Background())

	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(ctx, "127.0.0.1:0", "/control", func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("ListenAndServe failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener not ready")
	}

	c, err := Dial(context.Background(), "ws://"+addr.String()+"/control")
	require.NoError(t, err)
	resp, err := c.Send(context.Background(), []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "echo:ping", string(resp))
	c.Close()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}
