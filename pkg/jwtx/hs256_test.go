package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/teamhub/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newCodec(t *testing.T, clock *fakeClock) *jwtx.HS256Codec {
	t.Helper()
	c, err := jwtx.NewHS256(testKey, jwtx.HS256Options{Issuer: "teamhub", Now: clock.Now})
	require.NoError(t, err)
	return c
}

func TestNewHS256_KeyLength(t *testing.T) {
	_, err := jwtx.NewHS256([]byte("short"), jwtx.HS256Options{})
	require.ErrorIs(t, err, jwtx.ErrKeyTooShort)

	_, err = jwtx.NewHS256(testKey[:31], jwtx.HS256Options{})
	require.ErrorIs(t, err, jwtx.ErrKeyTooShort)

	_, err = jwtx.NewHS256(testKey, jwtx.HS256Options{})
	require.NoError(t, err)
}

func TestHS256_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	codec := newCodec(t, clock)

	token, err := codec.Sign(jwtx.NewAccessClaims("alice@example.com", "U1", "USER", "teamhub", 15*time.Minute, clock.Now()))
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", claims.Email())
	require.Equal(t, "U1", claims.UserID)
	require.Equal(t, "USER", claims.Role)
	require.Equal(t, clock.Now().Unix(), claims.IssuedAt.Unix())
	require.Equal(t, clock.Now().Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())
	require.NotEmpty(t, claims.ID)
}

func TestHS256_ExpiryBoundary(t *testing.T) {
	window := 15 * time.Minute
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	codec := newCodec(t, clock)

	token, err := codec.Sign(jwtx.NewAccessClaims("alice@example.com", "U1", "USER", "teamhub", window, clock.Now()))
	require.NoError(t, err)

	clock.Advance(window - time.Second)
	_, err = codec.Verify(token)
	require.NoError(t, err, "token must be valid just before expiry")

	clock.Advance(time.Second)
	_, err = codec.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired, "token must be expired at issue+window")
	require.NotErrorIs(t, err, jwtx.ErrInvalid)

	clock.Advance(5 * time.Minute)
	_, err = codec.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestNewAccessClaims_SubSecondClock(t *testing.T) {
	window := 15 * time.Minute
	issued := time.Unix(1_700_000_000, 0)
	clock := &fakeClock{t: issued.Add(900 * time.Millisecond)}
	codec := newCodec(t, clock)

	claims := jwtx.NewAccessClaims("alice@example.com", "U1", "USER", "teamhub", window, clock.Now())
	require.True(t, issued.Equal(claims.IssuedAt.Time))
	require.True(t, issued.Add(window).Equal(claims.ExpiresAt.Time))

	token, err := codec.Sign(claims)
	require.NoError(t, err)

	clock.t = issued.Add(window - time.Millisecond)
	_, err = codec.Verify(token)
	require.NoError(t, err)

	clock.t = issued.Add(window)
	_, err = codec.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestHS256_TamperingIsInvalid(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	codec := newCodec(t, clock)

	token, err := codec.Sign(jwtx.NewAccessClaims("alice@example.com", "U1", "ADMIN", "teamhub", time.Minute, clock.Now()))
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		b := []byte(token)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}

		_, err := codec.Verify(string(b))
		require.ErrorIs(t, err, jwtx.ErrInvalid, "byte %d", i)
		require.NotErrorIs(t, err, jwtx.ErrExpired, "byte %d", i)
	}
}

func TestHS256_TamperedExpiredTokenIsInvalid(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	codec := newCodec(t, clock)

	token, err := codec.Sign(jwtx.NewAccessClaims("alice@example.com", "U1", "USER", "teamhub", time.Minute, clock.Now()))
	require.NoError(t, err)
	clock.Advance(time.Hour)

	sig := strings.LastIndex(token, ".") + 1
	b := []byte(token)
	if b[sig] == 'A' {
		b[sig] = 'B'
	} else {
		b[sig] = 'A'
	}

	_, err = codec.Verify(string(b))
	require.ErrorIs(t, err, jwtx.ErrInvalid)
}

func TestHS256_Rejections(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	codec := newCodec(t, clock)
	claims := jwtx.NewAccessClaims("alice@example.com", "U1", "USER", "teamhub", time.Minute, clock.Now())

	t.Run("wrong key", func(t *testing.T) {
		other, err := jwtx.NewHS256([]byte("ffffffffffffffffffffffffffffffff"), jwtx.HS256Options{Now: clock.Now})
		require.NoError(t, err)
		token, err := other.Sign(claims)
		require.NoError(t, err)

		_, err = codec.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("alg none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = codec.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("HS512 with same key", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testKey)
		require.NoError(t, err)

		_, err = codec.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		c := claims
		c.Issuer = "someone-else"
		token, err := codec.Sign(c)
		require.NoError(t, err)

		_, err = codec.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("missing expiry", func(t *testing.T) {
		c := claims
		c.ExpiresAt = nil
		token, err := codec.Sign(c)
		require.NoError(t, err)

		_, err = codec.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		for _, in := range []string{"", "abc", "a.b.c", "Bearer x.y.z"} {
			_, err := codec.Verify(in)
			require.ErrorIs(t, err, jwtx.ErrInvalid, "input %q", in)
		}
	})
}
