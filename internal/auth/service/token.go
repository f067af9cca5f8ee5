package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/store"
	"github.com/aussiebroadwan/teamhub/internal/telemetry"
	"github.com/aussiebroadwan/teamhub/pkg/cryptox"
	"github.com/aussiebroadwan/teamhub/pkg/idx"
	"github.com/aussiebroadwan/teamhub/pkg/jwtx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
)

const (
	// MaxMFAAttempts is the number of wrong codes a challenge tolerates.
	MaxMFAAttempts = 5

	TokenTypeBearer = "Bearer"
)

// TokenService issues and verifies access tokens and owns the refresh and
// login flows. Its clock is the codec clock.
type TokenService struct {
	Codec         *jwtx.HS256Codec
	RefreshTokens store.RefreshTokens
	Users         *UserService
	MFA           *MFAService
	Challenges    *ChallengeCache
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Metrics       *telemetry.Metrics
}

func (s *TokenService) now() time.Time { return s.Codec.Now() }

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return s.AccessTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL <= 0 {
		return jwtx.DefaultRefreshTokenTTL
	}
	return s.RefreshTTL
}

// IssueAccessToken signs a token for u valid for AccessTTL from now.
func (s *TokenService) IssueAccessToken(u domain.User) (string, error) {
	claims := jwtx.NewAccessClaims(u.Email, u.ID, string(u.Role), s.Codec.Issuer(), s.accessTTL(), s.now())
	token, err := s.Codec.Sign(claims)
	if err != nil {
		return "", err
	}
	s.Metrics.TokenIssued("access")
	return token, nil
}

// VerifyAccessToken returns the claims of a valid token. The error matches
// exactly one of ErrTokenExpired or ErrTokenInvalid.
func (s *TokenService) VerifyAccessToken(token string) (jwtx.Claims, error) {
	claims, err := s.Codec.Verify(token)
	if err == nil {
		return claims, nil
	}
	if errors.Is(err, jwtx.ErrExpired) {
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	}
	return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
}

// ExtractEmail implements httpx.TokenParser.
func (s *TokenService) ExtractEmail(token string) (string, error) {
	claims, err := s.VerifyAccessToken(token)
	if err != nil {
		return "", err
	}
	return claims.Email(), nil
}

// ExtractUserID returns the userId claim of a valid access token.
func (s *TokenService) ExtractUserID(token string) (string, error) {
	claims, err := s.VerifyAccessToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// ExtractRole returns the role claim of a valid access token. The role is
// not checked against the known roles.
func (s *TokenService) ExtractRole(token string) (domain.Role, error) {
	claims, err := s.VerifyAccessToken(token)
	if err != nil {
		return "", err
	}
	return domain.Role(claims.Role), nil
}

// IssueRefreshToken generates a 256-bit opaque token and upserts it as the
// single refresh token of u. The returned record carries the plaintext.
func (s *TokenService) IssueRefreshToken(ctx context.Context, u domain.User) (domain.RefreshToken, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.RefreshToken{}, err
	}

	now := s.now()
	stored, err := s.RefreshTokens.UpsertRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    u.ID,
		Token:     opaque,
		TokenHash: cryptox.FingerprintToken(opaque),
		ExpiresAt: now.Add(s.refreshTTL()),
	})
	if err != nil {
		return domain.RefreshToken{}, storeErr("upsert refresh token", err)
	}
	s.Metrics.TokenIssued("refresh")
	return stored, nil
}

// IssueTokenPair issues an access token and replaces the refresh token of u.
func (s *TokenService) IssueTokenPair(ctx context.Context, u domain.User) (*domain.TokenPair, error) {
	access, err := s.IssueAccessToken(u)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(ctx, u)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.accessTTL() / time.Second),
	}, nil
}

// Refresh exchanges a live refresh token for a new pair. The consumed
// token is overwritten by the upsert and stops working.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidRefresh
	}

	rt, err := s.RefreshTokens.GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(refreshToken))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, storeErr("get refresh token", err)
	}
	if rt.Expired(s.now()) {
		l.Info("refresh token expired", "user_id", rt.UserID)
		return nil, ErrInvalidRefresh
	}

	u, err := s.Users.GetUser(ctx, rt.UserID)
	if errors.Is(err, ErrIdentityNotFound) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		l.Info("refresh for disabled account", "user_id", u.ID)
		return nil, ErrInvalidRefresh
	}

	return s.IssueTokenPair(ctx, u)
}

// Login verifies a password. Accounts with MFA enabled get a challenge in
// place of tokens; exactly one of the two results is non-nil on success.
func (s *TokenService) Login(ctx context.Context, email, password string) (*domain.TokenPair, *domain.MFAChallenge, error) {
	u, err := s.Users.Authenticate(ctx, email, password)
	if err != nil {
		s.Metrics.Login("password", "failed")
		return nil, nil, err
	}

	if u.HasMFA() {
		ch, err := s.Challenges.Create(u.ID)
		if err != nil {
			return nil, nil, err
		}
		s.Metrics.Login("password", "mfa_required")
		slogx.FromContext(ctx).Info("mfa challenge issued", "user_id", u.ID)
		return nil, &ch, nil
	}

	pair, err := s.IssueTokenPair(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	s.Metrics.Login("password", "ok")
	return pair, nil, nil
}

// LoginMFA completes a challenged login. A challenge tolerates
// MaxMFAAttempts wrong codes; after that it is dropped.
func (s *TokenService) LoginMFA(ctx context.Context, challengeToken, code string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	ch, ok := s.Challenges.Get(challengeToken)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if ch.Attempts >= MaxMFAAttempts {
		s.Challenges.Delete(challengeToken)
		l.Warn("mfa challenge exceeded max attempts", "user_id", ch.UserID, "attempts", ch.Attempts)
		return nil, ErrTooManyAttempts
	}

	u, err := s.Users.GetUser(ctx, ch.UserID)
	if errors.Is(err, ErrIdentityNotFound) {
		s.Challenges.Delete(challengeToken)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		s.Challenges.Delete(challengeToken)
		return nil, ErrAccountDisabled
	}

	if !s.MFA.Verify(u, code) {
		attempts := s.Challenges.RecordFailure(challengeToken)
		s.Metrics.Login("mfa", "failed")
		l.Warn("mfa validation failed", "user_id", u.ID, "attempts", attempts)
		return nil, ErrInvalidCode
	}

	s.Challenges.Delete(challengeToken)
	pair, err := s.IssueTokenPair(ctx, u)
	if err != nil {
		return nil, err
	}
	s.Metrics.Login("mfa", "ok")
	return pair, nil
}
