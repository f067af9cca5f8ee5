package oauth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testIssuer   = "https://issuer.test"
	testClientID = "client-1"
)

// newTestProvider wires an OIDCProvider to a local token endpoint that
// answers with an id_token built from claims.
func newTestProvider(t *testing.T, claims jwt.MapClaims) *OIDCProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") != "verifier-1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(srv.Close)

	verifier := oidc.NewVerifier(testIssuer,
		&oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		&oidc.Config{ClientID: testClientID},
	)

	return newOIDCProvider("test", &oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/login/oauth2/code/test",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{oidc.ScopeOpenID, "email"},
	}, verifier)
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            testIssuer,
		"sub":            "subject-42",
		"aud":            testClientID,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email":          "Alice@Example.com",
		"email_verified": true,
		"name":           "Alice",
	}
}

func TestOIDCProvider_AuthCodeURL(t *testing.T) {
	p := newTestProvider(t, validClaims())

	u, err := url.Parse(p.AuthCodeURL("state-1", "challenge-1"))
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "state-1", q.Get("state"))
	require.Equal(t, "challenge-1", q.Get("code_challenge"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, testClientID, q.Get("client_id"))
}

func TestOIDCProvider_Exchange(t *testing.T) {
	ctx := context.Background()

	t.Run("verified identity", func(t *testing.T) {
		p := newTestProvider(t, validClaims())

		id, err := p.Exchange(ctx, "good-code", "verifier-1")
		require.NoError(t, err)
		require.Equal(t, "test", id.Provider)
		require.Equal(t, "subject-42", id.Subject)
		require.Equal(t, "alice@example.com", id.Email)
		require.True(t, id.EmailVerified)
		require.Equal(t, "Alice", id.Name)
	})

	t.Run("wrong verifier", func(t *testing.T) {
		p := newTestProvider(t, validClaims())

		_, err := p.Exchange(ctx, "good-code", "other")
		require.Error(t, err)
	})

	t.Run("foreign audience", func(t *testing.T) {
		claims := validClaims()
		claims["aud"] = "someone-else"
		p := newTestProvider(t, claims)

		_, err := p.Exchange(ctx, "good-code", "verifier-1")
		require.Error(t, err)
	})

	t.Run("missing email", func(t *testing.T) {
		claims := validClaims()
		delete(claims, "email")
		p := newTestProvider(t, claims)

		_, err := p.Exchange(ctx, "good-code", "verifier-1")
		require.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	p := newTestProvider(t, validClaims())
	r := NewRegistry(p)

	got, err := r.Get("test")
	require.NoError(t, err)
	require.Same(t, p, got)

	_, err = r.Get("nope")
	require.ErrorIs(t, err, ErrUnknownProvider)
	require.Equal(t, []string{"test"}, r.Names())

	var empty *Registry
	_, err = empty.Get("test")
	require.ErrorIs(t, err, ErrUnknownProvider)
}
