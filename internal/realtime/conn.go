package realtime

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	connectTimeout = 10 * time.Second
	maxMessageSize = 64 << 10

	serverName = "teamhub"
)

var supportedVersions = []string{"1.2", "1.1", "1.0"}

// conn is one WebSocket connection. A single reader goroutine dispatches
// frames in order; a single writer goroutine owns all writes.
type conn struct {
	id      string
	ws      *websocket.Conn
	server  *Server
	session Session
	log     *slog.Logger

	out        chan *frame.Frame
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	connected bool // reader goroutine only
}

func (c *conn) ID() string        { return c.id }
func (c *conn) Principal() string { return c.server.Registry.Principal(c.id) }

// Send enqueues f unless the queue is full or the connection is closing.
func (c *conn) Send(f *frame.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- f:
		return true
	default:
		c.log.Warn("outgoing queue full, frame dropped", "command", f.Command)
		return false
	}
}

// close stops the connection. Queued frames are still flushed.
func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func encode(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *conn) write(f *frame.Frame) error {
	b, err := encode(f)
	if err != nil {
		return err
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case f := <-c.out:
			if err := c.write(f); err != nil {
				c.log.Debug("write failed", "err", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.drain()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *conn) drain() {
	for {
		select {
		case f := <-c.out:
			if err := c.write(f); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(connectTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read failed", "err", err)
			}
			return
		}
		if c.connected {
			_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		}

		r := frame.NewReader(bytes.NewReader(msg))
		for {
			f, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				c.fail(nil, "malformed frame")
				return
			}
			if f == nil {
				continue // heart-beat
			}
			if !c.dispatch(ctx, f) {
				return
			}
		}

		select {
		case <-c.done:
			return
		default:
		}
	}
}

// fail sends an ERROR frame and closes the connection.
func (c *conn) fail(req *frame.Frame, message string) {
	f := frame.New(frame.ERROR, frame.Message, message)
	if req != nil {
		if r, ok := req.Header.Contains(frame.Receipt); ok {
			f.Header.Set(frame.ReceiptId, r)
		}
	}
	c.Send(f)
	c.close()
}

func (c *conn) receipt(req *frame.Frame) {
	if r, ok := req.Header.Contains(frame.Receipt); ok {
		c.Send(frame.New(frame.RECEIPT, frame.ReceiptId, r))
	}
}

// dispatch handles one frame and reports whether reading should continue.
func (c *conn) dispatch(ctx context.Context, f *frame.Frame) bool {
	if !c.connected {
		if !isConnect(f) {
			c.fail(f, "expected CONNECT")
			return false
		}
		return c.handleConnect(f, c.server.Auth.Authenticate(ctx, c.session, f))
	}

	switch f.Command {
	case frame.CONNECT, frame.STOMP:
		c.fail(f, "already connected")
		return false

	case frame.SUBSCRIBE:
		dest := f.Header.Get(frame.Destination)
		if err := c.server.Broker.Subscribe(c, f.Header.Get(frame.Id), dest); err != nil {
			c.log.Info("subscription refused", "destination", dest, "err", err)
			c.fail(f, err.Error())
			return false
		}

	case frame.UNSUBSCRIBE:
		c.server.Broker.Unsubscribe(c, f.Header.Get(frame.Id))

	case frame.SEND:
		dest := f.Header.Get(frame.Destination)
		if _, err := c.server.Broker.Publish(c, dest, f.Header.Get(frame.ContentType), f.Body); err != nil {
			c.fail(f, err.Error())
			return false
		}

	case frame.DISCONNECT:
		c.receipt(f)
		c.close()
		return false

	case frame.ACK, frame.NACK, frame.BEGIN, frame.COMMIT, frame.ABORT:
		// Subscriptions are auto-ack and transactions are not supported;
		// these are accepted and ignored.

	default:
		c.fail(f, "unsupported command "+f.Command)
		return false
	}

	c.receipt(f)
	return true
}

func (c *conn) handleConnect(f *frame.Frame, principal string) bool {
	version, ok := negotiate(f)
	if !ok {
		c.fail(f, "supported protocol versions are "+strings.Join(supportedVersions, ","))
		return false
	}

	c.connected = true
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

	reply := frame.New(frame.CONNECTED,
		frame.Version, version,
		frame.Session, c.id,
		frame.Server, serverName,
		frame.HeartBeat, "0,0",
	)
	if principal != "" {
		reply.Header.Set("user-name", principal)
	}
	c.Send(reply)

	c.log.Info("realtime session established", "version", version, "anonymous", principal == "")
	return true
}

// negotiate picks the highest common protocol version. A CONNECT without
// accept-version is a 1.0 client.
func negotiate(f *frame.Frame) (string, bool) {
	accept, ok := f.Header.Contains(frame.AcceptVersion)
	if !ok {
		return "1.0", true
	}
	offered := strings.Split(accept, ",")
	for _, v := range supportedVersions {
		for _, o := range offered {
			if strings.TrimSpace(o) == v {
				return v, true
			}
		}
	}
	return "", false
}
