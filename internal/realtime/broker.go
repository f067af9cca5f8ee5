package realtime

import (
	"errors"
	"strings"
	"sync"

	"github.com/aussiebroadwan/teamhub/internal/telemetry"
	"github.com/aussiebroadwan/teamhub/pkg/idx"
	"github.com/go-stomp/stomp/v3/frame"
)

// Destination prefixes.
const (
	TopicPrefix     = "/topic/"
	UserPrefix      = "/user/"
	UserQueuePrefix = "/user/queue/"
)

// SenderHeader carries the principal of the publishing connection on every
// MESSAGE frame. It is empty for anonymous senders.
const SenderHeader = "x-sender"

var (
	ErrInvalidDestination    = errors.New("realtime: invalid destination")
	ErrForbiddenDestination  = errors.New("realtime: destination requires an authenticated session")
	ErrDuplicateSubscription = errors.New("realtime: subscription id already in use")
)

// Client is a connection as seen by the broker.
type Client interface {
	ID() string
	Principal() string

	// Send enqueues f without blocking and reports whether it was accepted.
	Send(f *frame.Frame) bool
}

type subscription struct {
	client Client
	id     string
	dest   string // as requested by the client
	route  string // resolved delivery key
}

type subKey struct {
	client string
	id     string
}

// Broker routes SEND frames to subscribers. Topics fan out to every
// subscriber; /user/{id}/... reaches the connections of user {id} that
// subscribed to the matching /user/queue/... destination.
type Broker struct {
	Metrics *telemetry.Metrics

	mu     sync.RWMutex
	routes map[string]map[subKey]*subscription
	subs   map[subKey]*subscription
}

// NewBroker returns a broker with no subscriptions. Metrics may be set
// before first use.
func NewBroker() *Broker {
	return &Broker{
		routes: make(map[string]map[subKey]*subscription),
		subs:   make(map[subKey]*subscription),
	}
}

// route resolves a subscription destination to its delivery key.
func route(dest, principal string) (string, error) {
	switch {
	case strings.HasPrefix(dest, TopicPrefix) && len(dest) > len(TopicPrefix):
		return dest, nil
	case strings.HasPrefix(dest, UserQueuePrefix) && len(dest) > len(UserQueuePrefix):
		if principal == "" {
			return "", ErrForbiddenDestination
		}
		return UserPrefix + principal + dest[len(UserPrefix)-1:], nil
	case strings.HasPrefix(dest, UserPrefix):
		// Only the caller's own queue may be subscribed.
		return "", ErrForbiddenDestination
	default:
		return "", ErrInvalidDestination
	}
}

// Subscribe registers subscription id of c on dest.
func (b *Broker) Subscribe(c Client, id, dest string) error {
	if id == "" {
		return ErrInvalidDestination
	}
	r, err := route(dest, c.Principal())
	if err != nil {
		return err
	}

	key := subKey{client: c.ID(), id: id}
	sub := &subscription{client: c, id: id, dest: dest, route: r}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[key]; ok {
		return ErrDuplicateSubscription
	}
	b.subs[key] = sub
	if b.routes[r] == nil {
		b.routes[r] = make(map[subKey]*subscription)
	}
	b.routes[r][key] = sub
	return nil
}

// Unsubscribe removes one subscription and reports whether it existed.
func (b *Broker) Unsubscribe(c Client, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(subKey{client: c.ID(), id: id})
}

// RemoveClient drops every subscription of c.
func (b *Broker) RemoveClient(c Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.subs {
		if key.client == c.ID() {
			b.removeLocked(key)
		}
	}
}

func (b *Broker) removeLocked(key subKey) bool {
	sub, ok := b.subs[key]
	if !ok {
		return false
	}
	delete(b.subs, key)
	if set := b.routes[sub.route]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(b.routes, sub.route)
		}
	}
	return true
}

// publishRoute validates a SEND destination and returns its delivery key.
func publishRoute(dest string) (string, error) {
	switch {
	case strings.HasPrefix(dest, TopicPrefix) && len(dest) > len(TopicPrefix):
		return dest, nil
	case strings.HasPrefix(dest, UserPrefix):
		rest := dest[len(UserPrefix):]
		user, tail, ok := strings.Cut(rest, "/")
		if !ok || user == "" || !strings.HasPrefix(tail, "queue/") || len(tail) == len("queue/") {
			return "", ErrInvalidDestination
		}
		return dest, nil
	default:
		return "", ErrInvalidDestination
	}
}

// Publish delivers body to the subscribers of dest and returns how many
// accepted it. Slow subscribers whose queue is full miss the message.
func (b *Broker) Publish(sender Client, dest, contentType string, body []byte) (int, error) {
	r, err := publishRoute(dest)
	if err != nil {
		return 0, err
	}

	from := ""
	if sender != nil {
		from = sender.Principal()
	}

	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.routes[r]))
	for _, sub := range b.routes[r] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		msg := frame.New(frame.MESSAGE,
			frame.Destination, sub.dest,
			frame.Subscription, sub.id,
			frame.MessageId, idx.New().String(),
			SenderHeader, from,
		)
		if contentType != "" {
			msg.Header.Set(frame.ContentType, contentType)
		}
		msg.Body = body

		if sub.client.Send(msg) {
			delivered++
		} else {
			b.Metrics.FrameDropped()
		}
	}
	return delivered, nil
}

// Subscriptions reports the number of active subscriptions.
func (b *Broker) Subscriptions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
