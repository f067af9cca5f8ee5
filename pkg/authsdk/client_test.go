package authsdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/teamhub/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, errCode string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": errCode == "",
		"message": "test",
		"error":   errCode,
		"data":    data,
	})
}

type fakeAPI struct {
	refreshes atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method + " " + r.URL.Path {
	case "POST /api/auth/login":
		var req struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case req.Password != "correct":
			writeEnvelope(w, http.StatusUnauthorized, "invalid_credentials", nil)
		case req.Email == "mfa@example.com":
			writeEnvelope(w, http.StatusOK, "", map[string]any{"mfaRequired": true, "mfaToken": "challenge", "expiresIn": 300})
		default:
			// expiresIn below the refresh leeway forces a refresh on first use.
			writeEnvelope(w, http.StatusOK, "", map[string]any{"accessToken": "stale", "refreshToken": "r1", "tokenType": "Bearer", "expiresIn": 1})
		}
	case "POST /api/auth/login-mfa":
		writeEnvelope(w, http.StatusOK, "", map[string]any{"accessToken": "a-mfa", "refreshToken": "r-mfa", "tokenType": "Bearer", "expiresIn": 900})
	case "POST /api/auth/refresh":
		f.refreshes.Add(1)
		writeEnvelope(w, http.StatusOK, "", map[string]any{"accessToken": "fresh", "refreshToken": "r2", "tokenType": "Bearer", "expiresIn": 900})
	case "GET /api/v1/users/me":
		if r.Header.Get("Authorization") != "Bearer fresh" && r.Header.Get("Authorization") != "Bearer a-mfa" {
			writeEnvelope(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "", map[string]any{"id": "u1", "email": "alice@example.com", "role": "USER", "active": true})
	case "GET /actuator/health":
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "degraded", "checks": map[string]string{"database": "down"}})
	default:
		http.NotFound(w, r)
	}
}

func newClient(t *testing.T) (*authsdk.SDKClient, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return authsdk.NewSDKClient(srv.URL + "/"), api
}

func TestLogin_RefreshesExpiringToken(t *testing.T) {
	client, api := newClient(t)
	ctx := context.Background()

	session, err := client.Login(ctx, "alice@example.com", "correct")
	require.NoError(t, err)
	require.Equal(t, "stale", session.AccessToken())

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", me.ID)
	require.Equal(t, "fresh", session.AccessToken())
	require.Equal(t, "r2", session.RefreshToken())

	_, err = session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), api.refreshes.Load())
}

func TestLogin_MFAChallenge(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	_, err := client.Login(ctx, "mfa@example.com", "correct")
	var mfa *authsdk.MFARequiredError
	require.True(t, errors.As(err, &mfa))
	require.Equal(t, "challenge", mfa.Token)
	require.Equal(t, int64(300), mfa.ExpiresIn)

	session, err := client.LoginMFA(ctx, mfa.Token, "123456")
	require.NoError(t, err)
	require.Equal(t, "a-mfa", session.AccessToken())
}

func TestAPIErrors(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	_, err := client.Login(ctx, "alice@example.com", "wrong")
	require.True(t, authsdk.IsStatus(err, http.StatusUnauthorized))
	require.True(t, authsdk.IsCode(err, "invalid_credentials"))

	_, err = client.Register(ctx, "x@example.com", "pw", "")
	require.True(t, authsdk.IsStatus(err, http.StatusNotFound))
	require.True(t, authsdk.IsCode(err, "not_found"))
}

func TestGetHealth_Degraded(t *testing.T) {
	client, _ := newClient(t)

	health, err := client.GetHealth(context.Background())
	require.True(t, authsdk.IsStatus(err, http.StatusServiceUnavailable))
	require.NotNil(t, health)
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "down", health.Checks["database"])
}
