// Package realtime serves STOMP over WebSocket. Each connection is
// authenticated once, at its CONNECT frame, and the resulting principal is
// kept in a Registry for the lifetime of the connection.
package realtime

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrAlreadyBound is returned by Bind for a connection that already has a
// session.
var ErrAlreadyBound = errors.New("realtime: session already bound")

// Session is the connection-scoped security context. Principal is the user
// id bound at CONNECT, empty for anonymous connections.
type Session struct {
	ID          string    `json:"id"`
	Principal   string    `json:"principal"`
	ConnectedAt time.Time `json:"connectedAt"`
	RemoteAddr  string    `json:"remoteAddr"`
}

// Anonymous reports whether no principal is bound.
func (s Session) Anonymous() bool { return s.Principal == "" }

// Registry indexes sessions by connection id. A session is written once at
// CONNECT and only read afterwards.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Bind records s. A second Bind for the same id fails and leaves the first
// binding untouched.
func (r *Registry) Bind(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return ErrAlreadyBound
	}
	r.sessions[s.ID] = s
	return nil
}

// Get returns the session bound to a connection id.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

// Principal returns the bound user id of a connection, or "".
func (r *Registry) Principal(id string) string {
	s, _ := r.Get(id)
	return s.Principal
}

// Remove forgets a connection. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len is the number of bound connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot copies all sessions, oldest first.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.Before(out[j].ConnectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
