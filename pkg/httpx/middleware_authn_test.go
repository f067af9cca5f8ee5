package httpx_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type stubTokens map[string]string

func (s stubTokens) ExtractEmail(token string) (string, error) {
	switch token {
	case "expired":
		return "", fmt.Errorf("wrapped: %w", jwtx.ErrExpired)
	}
	if email, ok := s[token]; ok {
		return email, nil
	}
	return "", jwtx.ErrInvalid
}

type stubIdentities map[string]httpx.Principal

func (s stubIdentities) ResolveEmail(_ context.Context, email string) (httpx.Principal, error) {
	if p, ok := s[email]; ok {
		return p, nil
	}
	return httpx.Principal{}, errors.New("not found")
}

var alice = httpx.Principal{UserID: "U1", Email: "alice@example.com", Role: "USER", Authorities: []string{"USER"}}

func newGate(outcomes *[]string) httpx.Middleware {
	return httpx.AuthnMiddleware(
		stubTokens{"good": "alice@example.com", "ghost": "ghost@example.com"},
		stubIdentities{"alice@example.com": alice},
		httpx.PublicPaths{
			Prefixes:    []string{"/api/auth/login", "/ws/"},
			GetPatterns: []*regexp.Regexp{regexp.MustCompile(`^/api/meetings/[A-Z0-9-]+$`)},
		},
		func(o string) { *outcomes = append(*outcomes, o) },
	)
}

// capture records the principal seen downstream; the gate must always call it.
func capture(seen *httpx.Principal, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*seen, _ = httpx.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthnMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		auth    string
		want    httpx.Principal
		outcome string
	}{
		{"public path without header", http.MethodPost, "/api/auth/login", "", httpx.Principal{}, httpx.AuthnPublic},
		{"public path ignores token", http.MethodPost, "/api/auth/login", "Bearer good", httpx.Principal{}, httpx.AuthnPublic},
		{"public GET pattern", http.MethodGet, "/api/meetings/ABC-123", "", httpx.Principal{}, httpx.AuthnPublic},
		{"valid token", http.MethodPost, "/api/v1/chat/send", "Bearer good", alice, httpx.AuthnAuthenticated},
		{"no header", http.MethodGet, "/api/v1/chat", "", httpx.Principal{}, httpx.AuthnNoCredentials},
		{"not bearer", http.MethodGet, "/api/v1/chat", "Basic Zm9vOmJhcg==", httpx.Principal{}, httpx.AuthnNoCredentials},
		{"empty bearer", http.MethodGet, "/api/v1/chat", "Bearer ", httpx.Principal{}, httpx.AuthnNoCredentials},
		{"expired token", http.MethodGet, "/api/v1/chat", "Bearer expired", httpx.Principal{}, httpx.AuthnExpiredToken},
		{"invalid token", http.MethodGet, "/api/v1/chat", "Bearer forged", httpx.Principal{}, httpx.AuthnInvalidToken},
		{"unknown identity", http.MethodGet, "/api/v1/chat", "Bearer ghost", httpx.Principal{}, httpx.AuthnUnresolved},
		{"pattern is GET only", http.MethodPost, "/api/meetings/ABC-123", "", httpx.Principal{}, httpx.AuthnNoCredentials},
		{"pattern rejects lowercase", http.MethodGet, "/api/meetings/abc", "", httpx.Principal{}, httpx.AuthnNoCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var outcomes []string
			var seen httpx.Principal
			var called bool

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			newGate(&outcomes)(capture(&seen, &called)).ServeHTTP(rec, req)

			require.True(t, called, "gate must always forward")
			require.Equal(t, http.StatusNoContent, rec.Code, "gate must never write a response")
			require.Equal(t, tt.want, seen)
			require.Equal(t, []string{tt.outcome}, outcomes)
		})
	}
}

func TestAuthnMiddleware_AlreadyBound(t *testing.T) {
	var outcomes []string
	var seen httpx.Principal
	var called bool

	preset := httpx.Principal{UserID: "U9", Email: "bob@example.com", Authorities: []string{"USER"}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil)
	req.Header.Set("Authorization", "Bearer good")
	req = req.WithContext(httpx.WithPrincipal(req.Context(), preset))

	newGate(&outcomes)(capture(&seen, &called)).ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, called)
	require.Equal(t, preset, seen)
	require.Equal(t, []string{httpx.AuthnAlreadyBound}, outcomes)
}

func TestBearerToken(t *testing.T) {
	tok, ok := httpx.BearerToken("Bearer abc.def")
	require.True(t, ok)
	require.Equal(t, "abc.def", tok)

	_, ok = httpx.BearerToken("bearer abc")
	require.False(t, ok)

	_, ok = httpx.BearerToken("")
	require.False(t, ok)
}
