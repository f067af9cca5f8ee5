package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinHS256KeyBytes is the smallest accepted HMAC key (256 bits).
const MinHS256KeyBytes = 32

var (
	// ErrKeyTooShort is returned at construction for keys under 256 bits.
	ErrKeyTooShort = errors.New("jwtx: signing key must be at least 256 bits")

	// ErrExpired and ErrInvalid are the only two kinds Verify returns.
	// Signature problems are always reported as ErrInvalid, even when the
	// embedded expiry has also passed.
	ErrExpired = errors.New("jwtx: token expired")
	ErrInvalid = errors.New("jwtx: token invalid")
)

// HS256Options tune a codec. The zero value is usable.
type HS256Options struct {
	// Issuer is stamped by callers building claims and, when non-empty,
	// required on verification.
	Issuer string

	// Now is the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// HS256Codec signs and verifies access tokens with a shared HMAC-SHA256 key.
// The key is copied at construction and never mutated, so a codec is safe
// for concurrent use.
type HS256Codec struct {
	key    []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewHS256 builds a codec, failing fast on keys shorter than 256 bits.
func NewHS256(key []byte, opts HS256Options) (*HS256Codec, error) {
	if len(key) < MinHS256KeyBytes {
		return nil, fmt.Errorf("%w: got %d bytes", ErrKeyTooShort, len(key))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}

	return &HS256Codec{
		key:    append([]byte(nil), key...),
		issuer: opts.Issuer,
		now:    now,
		parser: jwt.NewParser(parserOpts...),
	}, nil
}

// Alg is the JOSE algorithm name, always "HS256".
func (c *HS256Codec) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Issuer is the iss value required on verification, or "" when unchecked.
func (c *HS256Codec) Issuer() string { return c.issuer }

// Now returns the codec clock.
func (c *HS256Codec) Now() time.Time { return c.now() }

// Sign serialises claims into a compact JWS.
func (c *HS256Codec) Sign(claims Claims) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}

// Verify checks the signature, then the registered claims. The returned
// error wraps ErrExpired or ErrInvalid.
func (c *HS256Codec) Verify(token string) (Claims, error) {
	var claims Claims
	_, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err == nil {
		return claims, nil
	}

	if errors.Is(err, jwt.ErrTokenExpired) &&
		!errors.Is(err, jwt.ErrTokenSignatureInvalid) &&
		!errors.Is(err, jwt.ErrTokenMalformed) {
		return Claims{}, fmt.Errorf("%w: %v", ErrExpired, err)
	}
	return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
}
