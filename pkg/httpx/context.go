package httpx

import (
	"context"
	"slices"
)

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

// Principal is the security context of a request: the resolved identity
// and the authorities derived from its role.
type Principal struct {
	UserID      string   `json:"userId"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Authorities []string `json:"authorities"`
}

// IsAnonymous reports whether no identity is bound.
func (p Principal) IsAnonymous() bool { return p.UserID == "" }

// HasAuthority reports whether p was granted a.
func (p Principal) HasAuthority(a string) bool { return slices.Contains(p.Authorities, a) }

// WithPrincipal binds p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFrom returns the bound principal. ok is false for anonymous
// requests.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	if !ok || p.IsAnonymous() {
		return Principal{}, false
	}
	return p, true
}
