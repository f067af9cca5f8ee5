package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/teamhub/pkg/jwtx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
)

// TokenParser verifies a bearer token and returns its subject email.
type TokenParser interface {
	ExtractEmail(token string) (string, error)
}

// IdentityResolver loads the principal for an email.
type IdentityResolver interface {
	ResolveEmail(ctx context.Context, email string) (Principal, error)
}

// Gate outcomes reported to an AuthnObserver.
const (
	AuthnPublic        = "public"
	AuthnAlreadyBound  = "already_bound"
	AuthnNoCredentials = "no_credentials"
	AuthnExpiredToken  = "expired_token"
	AuthnInvalidToken  = "invalid_token"
	AuthnUnresolved    = "unresolved_identity"
	AuthnAuthenticated = "authenticated"
)

const bearerPrefix = "Bearer "

// AuthnObserver receives one outcome per request passing the gate.
type AuthnObserver func(outcome string)

// BearerToken returns the token of a "Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(bearerPrefix):])
	return tok, tok != ""
}

// AuthnMiddleware populates the request security context from a bearer
// token. It never rejects: on any failure the request continues anonymous
// and the authorization stage decides.
func AuthnMiddleware(tokens TokenParser, identities IdentityResolver, public PathMatcher, observe AuthnObserver) Middleware {
	if observe == nil {
		observe = func(string) {}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public != nil && public.Match(r) {
				observe(AuthnPublic)
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if _, ok := PrincipalFrom(ctx); ok {
				observe(AuthnAlreadyBound)
				next.ServeHTTP(w, r)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				observe(AuthnNoCredentials)
				next.ServeHTTP(w, r)
				return
			}

			log := slogx.FromContext(ctx)

			email, err := tokens.ExtractEmail(token)
			if err != nil {
				if errors.Is(err, jwtx.ErrExpired) {
					observe(AuthnExpiredToken)
					log.Debug("bearer token expired", "err", err)
				} else {
					observe(AuthnInvalidToken)
					log.Warn("bearer token rejected", "err", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			p, err := identities.ResolveEmail(ctx, email)
			if err != nil {
				observe(AuthnUnresolved)
				log.Warn("bearer identity not resolved", "email", email, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			observe(AuthnAuthenticated)
			ctx = slogx.WithAttrs(WithPrincipal(ctx, p), "user_id", p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
