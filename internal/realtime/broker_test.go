package realtime_test

import (
	"sync"
	"testing"

	"github.com/aussiebroadwan/teamhub/internal/realtime"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	id, principal string
	capacity      int

	mu       sync.Mutex
	received []*frame.Frame
}

func (c *fakeClient) ID() string        { return c.id }
func (c *fakeClient) Principal() string { return c.principal }

func (c *fakeClient) Send(f *frame.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity > 0 && len(c.received) >= c.capacity {
		return false
	}
	c.received = append(c.received, f)
	return true
}

func (c *fakeClient) frames() []*frame.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*frame.Frame(nil), c.received...)
}

func TestBroker_TopicFanOut(t *testing.T) {
	b := realtime.NewBroker()
	alice := &fakeClient{id: "c1", principal: "U1"}
	guest := &fakeClient{id: "c2"}
	other := &fakeClient{id: "c3", principal: "U3"}

	require.NoError(t, b.Subscribe(alice, "sub-0", "/topic/room.1"))
	require.NoError(t, b.Subscribe(guest, "sub-0", "/topic/room.1"))
	require.NoError(t, b.Subscribe(other, "sub-0", "/topic/room.2"))

	n, err := b.Publish(alice, "/topic/room.1", "text/plain", []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, c := range []*fakeClient{alice, guest} {
		got := c.frames()
		require.Len(t, got, 1)
		msg := got[0]
		require.Equal(t, frame.MESSAGE, msg.Command)
		require.Equal(t, "/topic/room.1", msg.Header.Get(frame.Destination))
		require.Equal(t, "sub-0", msg.Header.Get(frame.Subscription))
		require.Equal(t, "U1", msg.Header.Get(realtime.SenderHeader))
		require.Equal(t, "text/plain", msg.Header.Get(frame.ContentType))
		require.NotEmpty(t, msg.Header.Get(frame.MessageId))
		require.Equal(t, []byte("hi"), msg.Body)
	}
	require.Empty(t, other.frames())

	_, err = b.Publish(guest, "/topic/room.2", "", nil)
	require.NoError(t, err)
	sender, ok := other.frames()[0].Header.Contains(realtime.SenderHeader)
	require.True(t, ok)
	require.Empty(t, sender, "anonymous sender")
}

func TestBroker_UserDestinations(t *testing.T) {
	b := realtime.NewBroker()
	alice := &fakeClient{id: "c1", principal: "U1"}
	aliceTab := &fakeClient{id: "c2", principal: "U1"}
	bob := &fakeClient{id: "c3", principal: "U2"}
	guest := &fakeClient{id: "c4"}

	require.NoError(t, b.Subscribe(alice, "s", "/user/queue/notes"))
	require.NoError(t, b.Subscribe(aliceTab, "s", "/user/queue/notes"))
	require.NoError(t, b.Subscribe(bob, "s", "/user/queue/notes"))

	n, err := b.Publish(bob, "/user/U1/queue/notes", "", []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "/user/queue/notes", alice.frames()[0].Header.Get(frame.Destination))
	require.Equal(t, "U2", alice.frames()[0].Header.Get(realtime.SenderHeader))
	require.Empty(t, bob.frames())

	require.ErrorIs(t, b.Subscribe(guest, "s", "/user/queue/notes"), realtime.ErrForbiddenDestination)
	require.ErrorIs(t, b.Subscribe(bob, "s2", "/user/U1/queue/notes"), realtime.ErrForbiddenDestination)
}

func TestBroker_InvalidDestinations(t *testing.T) {
	b := realtime.NewBroker()
	c := &fakeClient{id: "c1", principal: "U1"}

	for _, dest := range []string{"", "/queue/x", "/topic/", "/app/chat"} {
		require.ErrorIs(t, b.Subscribe(c, "s", dest), realtime.ErrInvalidDestination, dest)
	}
	require.ErrorIs(t, b.Subscribe(c, "", "/topic/x"), realtime.ErrInvalidDestination)

	for _, dest := range []string{"", "/topic/", "/user/U1", "/user//queue/x", "/user/U1/queue/", "/user/U1/inbox/x"} {
		_, err := b.Publish(c, dest, "", nil)
		require.ErrorIs(t, err, realtime.ErrInvalidDestination, dest)
	}

	require.NoError(t, b.Subscribe(c, "s", "/topic/x"))
	require.ErrorIs(t, b.Subscribe(c, "s", "/topic/y"), realtime.ErrDuplicateSubscription)
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := realtime.NewBroker()
	c := &fakeClient{id: "c1", principal: "U1"}

	require.NoError(t, b.Subscribe(c, "a", "/topic/x"))
	require.NoError(t, b.Subscribe(c, "b", "/user/queue/y"))
	require.Equal(t, 2, b.Subscriptions())

	require.True(t, b.Unsubscribe(c, "a"))
	require.False(t, b.Unsubscribe(c, "a"))

	n, err := b.Publish(c, "/topic/x", "", nil)
	require.NoError(t, err)
	require.Zero(t, n)

	b.RemoveClient(c)
	require.Zero(t, b.Subscriptions())
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := realtime.NewBroker()
	slow := &fakeClient{id: "slow", capacity: 1}
	fast := &fakeClient{id: "fast"}

	require.NoError(t, b.Subscribe(slow, "s", "/topic/x"))
	require.NoError(t, b.Subscribe(fast, "s", "/topic/x"))

	for range 3 {
		_, err := b.Publish(nil, "/topic/x", "", nil)
		require.NoError(t, err)
	}
	require.Len(t, slow.frames(), 1)
	require.Len(t, fast.frames(), 3)
}
