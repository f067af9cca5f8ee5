package teamhub_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/teamhub/pkg/authsdk"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/require"
)

func TestRealtimeAuthenticatedAndAnonymous(t *testing.T) {
	baseURL := setupContainer(t)
	client := authsdk.NewSDKClient(baseURL)

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	_, adminSession := registerAndLogin(t, client, adminEmail, adminPassword)
	user, userSession := registerAndLogin(t, client, userEmail, userPassword)

	userConn, err := userSession.DialRealtime(ctx, "/ws/")
	require.NoError(t, err)
	defer userConn.Close()
	require.Equal(t, "1.2", userConn.Connected.Header.Get(frame.Version))

	anonConn, err := client.DialRealtime(ctx, "/ws-meeting/", "")
	require.NoError(t, err)
	defer anonConn.Close()

	// A broken token still connects, anonymously.
	badConn, err := client.DialRealtime(ctx, "/ws/", "not-a-jwt")
	require.NoError(t, err)
	defer badConn.Close()

	require.NoError(t, userConn.Subscribe(ctx, "notes", "/user/queue/notes"))
	require.NoError(t, userConn.Subscribe(ctx, "chat", "/topic/chat"))

	require.NoError(t, anonConn.Send("/topic/chat", "text/plain", []byte("hello")))
	msg, err := userConn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, frame.MESSAGE, msg.Command)
	require.Equal(t, "/topic/chat", msg.Header.Get(frame.Destination))
	require.Equal(t, "hello", string(msg.Body))

	require.NoError(t, anonConn.Send("/user/"+user.ID+"/queue/notes", "text/plain", []byte("direct")))
	msg, err = userConn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "notes", msg.Header.Get(frame.Subscription))
	require.Equal(t, "direct", string(msg.Body))

	sessions, err := adminSession.RealtimeSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	principals := map[string]int{}
	for _, s := range sessions {
		principals[s.Principal]++
	}
	require.Equal(t, 1, principals[user.ID])
	require.Equal(t, 2, principals[""])

	// User queues need an authenticated connection.
	err = badConn.Subscribe(ctx, "notes", "/user/queue/notes")
	require.ErrorIs(t, err, authsdk.ErrRealtimeRejected)

	_, err = userSession.RealtimeSessions(ctx)
	assertStatus(t, err, http.StatusForbidden, "USER listing sessions")
}
