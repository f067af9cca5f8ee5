package realtime

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/jwtx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
	"github.com/go-stomp/stomp/v3/frame"
)

// AuthorizationHeader is the native CONNECT header carrying the bearer
// token.
const AuthorizationHeader = "Authorization"

// HandshakeAuthenticator resolves the principal of a connection from its
// CONNECT frame. Like the HTTP gate it never rejects: any failure leaves
// the connection anonymous and destination rules decide what it may do.
type HandshakeAuthenticator struct {
	Tokens     httpx.TokenParser
	Identities httpx.IdentityResolver
	Registry   *Registry

	// Observe receives one httpx.Authn* outcome per CONNECT.
	Observe func(outcome string)
}

func isConnect(f *frame.Frame) bool {
	return f != nil && (f.Command == frame.CONNECT || f.Command == frame.STOMP)
}

// Authenticate returns the principal for f. On CONNECT it verifies the
// token and binds the session; on every other frame it reads the binding
// without re-verifying.
func (a *HandshakeAuthenticator) Authenticate(ctx context.Context, sess Session, f *frame.Frame) string {
	if !isConnect(f) {
		return a.Registry.Principal(sess.ID)
	}
	if bound, ok := a.Registry.Get(sess.ID); ok {
		slogx.FromContext(ctx).Warn("repeated CONNECT ignored", "session", sess.ID)
		return bound.Principal
	}

	sess.Principal = a.resolve(ctx, f.Header.Get(AuthorizationHeader))
	if err := a.Registry.Bind(sess); err != nil {
		slogx.FromContext(ctx).Warn("repeated CONNECT ignored", "err", err)
		return a.Registry.Principal(sess.ID)
	}
	return sess.Principal
}

func (a *HandshakeAuthenticator) observe(outcome string) {
	if a.Observe != nil {
		a.Observe(outcome)
	}
}

func (a *HandshakeAuthenticator) resolve(ctx context.Context, header string) string {
	log := slogx.FromContext(ctx)

	token, ok := httpx.BearerToken(header)
	if !ok {
		a.observe(httpx.AuthnNoCredentials)
		log.Debug("CONNECT without bearer token, continuing anonymous")
		return ""
	}

	email, err := a.Tokens.ExtractEmail(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			a.observe(httpx.AuthnExpiredToken)
		} else {
			a.observe(httpx.AuthnInvalidToken)
		}
		log.Warn("CONNECT token rejected, continuing anonymous", "err", err)
		return ""
	}

	p, err := a.Identities.ResolveEmail(ctx, email)
	if err != nil {
		a.observe(httpx.AuthnUnresolved)
		log.Warn("CONNECT identity not resolved, continuing anonymous", "email", email, "err", err)
		return ""
	}

	a.observe(httpx.AuthnAuthenticated)
	log.Info("realtime principal bound", "user_id", p.UserID)
	return p.UserID
}
