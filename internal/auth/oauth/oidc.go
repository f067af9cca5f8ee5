package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GoogleIssuer is the OIDC discovery base for Google accounts.
const GoogleIssuer = "https://accounts.google.com"

// OIDCConfig describes an OpenID Connect provider reached by discovery.
type OIDCConfig struct {
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OIDCProvider runs the authorization code flow with PKCE and verifies the
// returned id_token.
type OIDCProvider struct {
	name     string
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDC performs discovery against the issuer.
func NewOIDC(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.Name == "" || cfg.IssuerURL == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, errors.New("oauth: oidc config missing required fields")
	}

	p, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oauth: %s discovery: %w", cfg.Name, err)
	}

	return newOIDCProvider(cfg.Name,
		&oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     p.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		p.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	), nil
}

// NewGoogle configures Google sign-in.
func NewGoogle(ctx context.Context, clientID, clientSecret, redirectURL string) (*OIDCProvider, error) {
	return NewOIDC(ctx, OIDCConfig{
		Name:         "google",
		IssuerURL:    GoogleIssuer,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
	})
}

func newOIDCProvider(name string, cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *OIDCProvider {
	return &OIDCProvider{name: name, config: cfg, verifier: verifier}
}

func (p *OIDCProvider) Name() string { return p.name }

func (p *OIDCProvider) AuthCodeURL(state, codeChallenge string) string {
	return p.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *OIDCProvider) Exchange(ctx context.Context, code, codeVerifier string) (domain.ExternalIdentity, error) {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("oauth: %s token exchange: %w", p.name, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return domain.ExternalIdentity{}, fmt.Errorf("oauth: %s returned no id_token", p.name)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("oauth: %s id_token: %w", p.name, err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("oauth: %s id_token claims: %w", p.name, err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return domain.ExternalIdentity{}, fmt.Errorf("oauth: %s id_token missing sub or email", p.name)
	}

	return domain.ExternalIdentity{
		Provider:      p.name,
		Subject:       claims.Subject,
		Email:         strings.ToLower(claims.Email),
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}
