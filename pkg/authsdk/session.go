package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// refreshLeeway refreshes access tokens this long before they expire.
const refreshLeeway = 30 * time.Second

// Session represents an authenticated user with automatic token refresh.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, pair *TokenPair) *Session {
	s := &Session{client: client}
	s.update(pair)
	return s
}

// update must be called with mu held for writing, or before s is shared.
func (s *Session) update(pair *TokenPair) {
	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(pair.ExpiresIn)*time.Second - refreshLeeway)
}

// getValidToken returns a valid access token, refreshing it when close to expiry.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", errors.New("access token expired and no refresh token available")
	}

	pair, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.update(pair)

	return s.accessToken, nil
}

// ForceRefresh rotates the tokens regardless of expiry.
func (s *Session) ForceRefresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return err
	}
	s.update(pair)
	return nil
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *Session) call(ctx context.Context, method, path string, body any, target any) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}
	return s.client.call(ctx, method, path, token, body, http.StatusOK, target)
}

// Me returns the authenticated user.
func (s *Session) Me(ctx context.Context) (*User, error) {
	var u User
	if err := s.call(ctx, http.MethodGet, "/api/v1/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DisableMFA turns MFA off after checking a current code.
func (s *Session) DisableMFA(ctx context.Context, code string) error {
	return s.call(ctx, http.MethodDelete, "/api/v1/users/me/mfa", codeRequest{Code: code}, nil)
}

// RealtimeSessions lists open realtime connections. Requires ADMIN.
func (s *Session) RealtimeSessions(ctx context.Context) ([]RealtimeSession, error) {
	var out []RealtimeSession
	if err := s.call(ctx, http.MethodGet, "/api/v1/admin/realtime/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetUserActive enables or disables an account. Requires ADMIN.
func (s *Session) SetUserActive(ctx context.Context, userID string, active bool) error {
	path := "/api/v1/admin/users/" + url.PathEscape(userID) + "/active"
	return s.call(ctx, http.MethodPut, path, setActiveRequest{Active: active}, nil)
}

// DialRealtime connects to a realtime endpoint with this session's token.
func (s *Session) DialRealtime(ctx context.Context, path string) (*RealtimeConn, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.DialRealtime(ctx, path, token)
}
