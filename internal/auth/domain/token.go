package domain

import "time"

// TokenPair is returned by login, refresh and OAuth callbacks.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

// RefreshToken is the single refresh token record of a user.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string // plaintext, only set on the value returned at issue
	TokenHash string // base64url SHA-256 fingerprint of Token
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the token is unusable at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
