// Package oauth talks to external OAuth2/OIDC identity providers. Providers
// only report identity facts; linking and session issuance happen in the
// service layer.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
)

// ErrUnknownProvider is returned for a provider name that is not configured.
var ErrUnknownProvider = errors.New("oauth: unknown provider")

// Provider is one configured identity provider.
type Provider interface {
	// Name is the path segment the provider is mounted under.
	Name() string

	// AuthCodeURL returns the authorization redirect carrying state and an
	// S256 PKCE challenge.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange redeems an authorization code and returns the verified
	// identity.
	Exchange(ctx context.Context, code, codeVerifier string) (domain.ExternalIdentity, error)
}

// Registry looks providers up by name. It is immutable after construction.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes providers by Name. A later duplicate replaces an
// earlier one.
func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the named provider. A nil registry has no providers.
func (r *Registry) Get(name string) (Provider, error) {
	if r != nil {
		if p, ok := r.providers[name]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
}

// Names lists the registered providers in order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
