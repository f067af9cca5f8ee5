package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes, overridable through configuration.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the access-token claims. The registered subject carries the
// account email; the user id and role travel as custom claims.
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// NewAccessClaims builds claims valid for ttl from now truncated to the
// second, the precision of iat and exp.
func NewAccessClaims(email, userID, role, issuer string, ttl time.Duration, now time.Time) Claims {
	issued := now.Truncate(time.Second)
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
			ID:        NewJTI(),
		},
		UserID: userID,
		Role:   role,
	}
}

// Email returns the subject claim.
func (c Claims) Email() string { return c.Subject }

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
