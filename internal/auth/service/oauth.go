package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/oauth"
	"github.com/aussiebroadwan/teamhub/internal/auth/store"
	"github.com/aussiebroadwan/teamhub/pkg/cryptox"
	"github.com/aussiebroadwan/teamhub/pkg/idx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/oauth2"
)

// DefaultOAuthStateTTL bounds the round trip through the provider.
const DefaultOAuthStateTTL = 5 * time.Minute

type oauthState struct {
	Provider string
	Verifier string
}

// OAuthService signs users in through external providers and reconciles
// provider identities with local accounts.
type OAuthService struct {
	Store     store.Store
	Users     *UserService
	Tokens    *TokenService
	Providers *oauth.Registry

	states *ttlcache.Cache[string, oauthState]
}

// NewOAuthService keeps pending authorization states for
// DefaultOAuthStateTTL.
func NewOAuthService(st store.Store, users *UserService, tokens *TokenService, providers *oauth.Registry) *OAuthService {
	return &OAuthService{
		Store:     st,
		Users:     users,
		Tokens:    tokens,
		Providers: providers,
		states: ttlcache.New(
			ttlcache.WithTTL[string, oauthState](DefaultOAuthStateTTL),
			ttlcache.WithDisableTouchOnHit[string, oauthState](),
		),
	}
}

// Begin starts an authorization code flow and returns the provider
// redirect URL. State and PKCE verifier stay server side.
func (s *OAuthService) Begin(provider string) (string, error) {
	p, err := s.Providers.Get(provider)
	if err != nil {
		return "", err
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	s.states.Set(state, oauthState{Provider: provider, Verifier: verifier}, ttlcache.DefaultTTL)
	return p.AuthCodeURL(state, oauth2.S256ChallengeFromVerifier(verifier)), nil
}

// Complete handles the provider callback. A state is usable once.
func (s *OAuthService) Complete(ctx context.Context, provider, state, code string) (*domain.TokenPair, error) {
	item, ok := s.states.GetAndDelete(state)
	if !ok || item == nil || item.IsExpired() || item.Value().Provider != provider {
		return nil, ErrInvalidState
	}

	p, err := s.Providers.Get(provider)
	if err != nil {
		return nil, err
	}

	id, err := p.Exchange(ctx, code, item.Value().Verifier)
	if err != nil {
		slogx.FromContext(ctx).Warn("oauth exchange failed", "provider", provider, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	u, err := s.Reconcile(ctx, id)
	if err != nil {
		return nil, err
	}

	pair, err := s.Tokens.IssueTokenPair(ctx, u)
	if err != nil {
		return nil, err
	}
	s.Tokens.Metrics.Login("oauth2", "ok")
	return pair, nil
}

// Reconcile maps a provider identity to a local account: an existing link
// wins, then a verified email match is linked, otherwise a new account is
// created and linked.
func (s *OAuthService) Reconcile(ctx context.Context, id domain.ExternalIdentity) (domain.User, error) {
	l := slogx.FromContext(ctx)

	link, err := s.Store.Identities().GetIdentityLink(ctx, id.Provider, id.Subject)
	switch {
	case err == nil:
		return s.activeUser(ctx, link.UserID)
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, storeErr("get identity link", err)
	}

	email, err := NormalizeEmail(id.Email)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !id.EmailVerified {
			return domain.User{}, ErrUnverifiedEmail
		}
		if !u.Active {
			return domain.User{}, ErrAccountDisabled
		}
	case errors.Is(err, store.ErrNotFound):
		u = domain.User{
			ID:          idx.New().String(),
			Email:       email,
			DisplayName: id.Name,
			Active:      true,
		}
		if u.DisplayName == "" {
			u.DisplayName = email
		}
		if err := s.Users.create(ctx, &u); err != nil {
			return domain.User{}, err
		}
		l.Info("user created from oauth identity", "user_id", u.ID, "provider", id.Provider, "role", u.Role)
	default:
		return domain.User{}, storeErr("get user", err)
	}

	err = s.Store.Identities().CreateIdentityLink(ctx, domain.IdentityLink{
		Provider: id.Provider,
		Subject:  id.Subject,
		UserID:   u.ID,
		Email:    email,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// A concurrent callback linked the subject first.
		link, err := s.Store.Identities().GetIdentityLink(ctx, id.Provider, id.Subject)
		if err != nil {
			return domain.User{}, storeErr("get identity link", err)
		}
		return s.activeUser(ctx, link.UserID)
	}
	if err != nil {
		return domain.User{}, storeErr("create identity link", err)
	}

	l.Info("identity linked", "user_id", u.ID, "provider", id.Provider)
	return u, nil
}

func (s *OAuthService) activeUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if !u.Active {
		return domain.User{}, ErrAccountDisabled
	}
	return u, nil
}

// DeleteExpired sweeps abandoned authorization states.
func (s *OAuthService) DeleteExpired() {
	s.states.DeleteExpired()
}
