package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/telemetry"
	"github.com/aussiebroadwan/teamhub/pkg/idx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

// DefaultQueueSize bounds the outgoing frames buffered per connection.
const DefaultQueueSize = 64

// Subprotocols offered during the upgrade, preferred first.
var Subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// Server is the WebSocket endpoint. It is an http.Handler and may be
// mounted under several paths.
type Server struct {
	Auth      *HandshakeAuthenticator
	Registry  *Registry
	Broker    *Broker
	Metrics   *telemetry.Metrics
	Upgrader  websocket.Upgrader
	QueueSize int

	mu     sync.Mutex
	conns  map[string]*conn
	closed bool
	wg     sync.WaitGroup
}

// NewServer wires a server around auth. allowedOrigins lists the
// accepted Origin values; "*" accepts any origin and an empty list keeps
// the same-host check of the upgrader.
func NewServer(auth *HandshakeAuthenticator, broker *Broker, allowedOrigins []string, metrics *telemetry.Metrics) *Server {
	return &Server{
		Auth:     auth,
		Registry: auth.Registry,
		Broker:   broker,
		Metrics:  metrics,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    Subprotocols,
			CheckOrigin:     CheckOrigin(allowedOrigins),
		},
		QueueSize: DefaultQueueSize,
		conns:     make(map[string]*conn),
	}
}

// CheckOrigin builds an upgrader origin policy. See NewServer.
func CheckOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		origin = strings.ToLower(u.Scheme + "://" + u.Host)
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimRight(a, "/"), origin) {
				return true
			}
		}
		return false
	}
}

// ServeHTTP upgrades to WebSocket and serves STOMP frames until the
// client disconnects or the server shuts down.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote an HTTP error.
		slogx.FromContext(r.Context()).Info("websocket upgrade refused", "err", err)
		return
	}

	id := idx.New().String()
	ctx := slogx.WithConnID(r.Context(), id)

	queue := s.QueueSize
	if queue <= 0 {
		queue = DefaultQueueSize
	}

	c := &conn{
		id:     id,
		ws:     ws,
		server: s,
		session: Session{
			ID:          id,
			ConnectedAt: time.Now().UTC(),
			RemoteAddr:  r.RemoteAddr,
		},
		log:        slogx.FromContext(ctx),
		out:        make(chan *frame.Frame, queue),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	if !s.track(c) {
		_ = ws.Close()
		return
	}
	defer s.untrack(c)

	s.Metrics.RealtimeConnected()
	defer s.Metrics.RealtimeDisconnected()

	go c.writeLoop()
	c.readLoop(ctx)

	c.close()
	<-c.writerDone

	s.Broker.RemoveClient(c)
	s.Registry.Remove(c.id)
	c.log.Info("realtime connection closed")
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[c.id] = c
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.wg.Done()
}

// Sessions lists the live sessions, oldest first.
func (s *Server) Sessions() []Session {
	return s.Registry.Snapshot()
}

// Shutdown stops accepting connections, closes the open ones and waits for
// them to finish or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, c := range s.conns {
		c.close()
	}
	n := len(s.conns)
	s.mu.Unlock()

	if n > 0 {
		slog.Info("closing realtime connections", "count", n)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
