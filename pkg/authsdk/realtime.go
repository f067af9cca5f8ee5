package authsdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

const realtimeReadWait = 30 * time.Second

// ErrRealtimeRejected wraps ERROR frames sent by the server.
var ErrRealtimeRejected = errors.New("teamhub: realtime error frame")

// RealtimeConn is a STOMP 1.2 connection over WebSocket. Writes are safe for
// concurrent use; Read must be called from one goroutine at a time.
type RealtimeConn struct {
	ws *websocket.Conn

	// Connected is the server's CONNECTED frame.
	Connected *frame.Frame

	writeMu sync.Mutex
}

// DialRealtime upgrades path (e.g. "/ws/") to WebSocket and completes the
// STOMP handshake. An empty token connects anonymously.
func (c *SDKClient) DialRealtime(ctx context.Context, path, token string) (*RealtimeConn, error) {
	target := c.url(path)
	switch {
	case strings.HasPrefix(target, "https://"):
		target = "wss://" + strings.TrimPrefix(target, "https://")
	case strings.HasPrefix(target, "http://"):
		target = "ws://" + strings.TrimPrefix(target, "http://")
	}

	d := websocket.Dialer{
		Subprotocols:     []string{"v12.stomp"},
		HandshakeTimeout: c.HTTPClient.Timeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	ws, _, err := d.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime: %w", err)
	}
	rc := &RealtimeConn{ws: ws}

	connect := frame.New(frame.CONNECT, frame.AcceptVersion, "1.2", "host", hostOf(c.BaseURL))
	if token != "" {
		connect.Header.Set("Authorization", "Bearer "+token)
	}
	if err := rc.write(connect); err != nil {
		_ = ws.Close()
		return nil, err
	}

	f, err := rc.Read(ctx)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	if f.Command != frame.CONNECTED {
		_ = ws.Close()
		return nil, fmt.Errorf("unexpected %s frame during handshake", f.Command)
	}
	rc.Connected = f
	return rc, nil
}

func hostOf(baseURL string) string {
	h := baseURL
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexByte(h, '/'); i >= 0 {
		h = h[:i]
	}
	return h
}

func (rc *RealtimeConn) write(f *frame.Frame) error {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", f.Command, err)
	}

	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	_ = rc.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := rc.ws.WriteMessage(websocket.TextMessage, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send %s frame: %w", f.Command, err)
	}
	return nil
}

// Subscribe registers id for dest and waits for the server's receipt.
func (rc *RealtimeConn) Subscribe(ctx context.Context, id, dest string) error {
	receipt := "sub-" + id
	err := rc.write(frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, dest,
		frame.Receipt, receipt,
	))
	if err != nil {
		return err
	}

	f, err := rc.Read(ctx)
	if err != nil {
		return err
	}
	if f.Command != frame.RECEIPT || f.Header.Get(frame.ReceiptId) != receipt {
		return fmt.Errorf("unexpected %s frame for subscription %q", f.Command, id)
	}
	return nil
}

// Send publishes body to dest.
func (rc *RealtimeConn) Send(dest, contentType string, body []byte) error {
	f := frame.New(frame.SEND, frame.Destination, dest, frame.ContentType, contentType)
	f.Body = body
	return rc.write(f)
}

// Read returns the next frame, skipping heart-beats. ERROR frames are
// returned together with an error wrapping ErrRealtimeRejected.
func (rc *RealtimeConn) Read(ctx context.Context) (*frame.Frame, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(realtimeReadWait)
	}
	_ = rc.ws.SetReadDeadline(deadline)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, msg, err := rc.ws.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		f, err := frame.NewReader(bytes.NewReader(msg)).Read()
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame: %w", err)
		}
		if f == nil {
			continue
		}
		if f.Command == frame.ERROR {
			return f, fmt.Errorf("%w: %s", ErrRealtimeRejected, f.Header.Get(frame.Message))
		}
		return f, nil
	}
}

// Close sends DISCONNECT and closes the socket.
func (rc *RealtimeConn) Close() error {
	_ = rc.write(frame.New(frame.DISCONNECT))

	rc.writeMu.Lock()
	_ = rc.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	rc.writeMu.Unlock()

	return rc.ws.Close()
}
