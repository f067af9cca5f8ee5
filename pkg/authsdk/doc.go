/*
Package authsdk is a Go client for the TeamHub authentication and realtime API.

# SDKClient vs Session

SDKClient covers the public endpoints: registration, login, refresh, the
pre-session MFA endpoints and health. A successful login returns a Session,
which sends the bearer token on every call and refreshes it shortly before
it expires:

	client := authsdk.NewSDKClient("https://teamhub.example.com")

	session, err := client.Login(ctx, "alice@example.com", password)
	var mfa *authsdk.MFARequiredError
	if errors.As(err, &mfa) {
		session, err = client.LoginMFA(ctx, mfa.Token, totpCode)
	}

	me, err := session.Me(ctx)

Refresh tokens are single use. The server keeps one refresh token per user,
so logging in elsewhere invalidates the refresh token held by an older
Session.

# Errors

Failed responses are returned as *APIError carrying the HTTP status and the
machine readable code of the response envelope:

	if authsdk.IsCode(err, "invalid_credentials") { ... }

# Realtime

DialRealtime opens a STOMP 1.2 connection over WebSocket. The access token
travels in the Authorization header of the CONNECT frame; without one the
connection is anonymous and may only use /topic/ destinations:

	rt, err := session.DialRealtime(ctx, "/ws/")
	defer rt.Close()

	err = rt.Subscribe(ctx, "sub-1", "/user/queue/notifications")
	msg, err := rt.Read(ctx)
*/
package authsdk
