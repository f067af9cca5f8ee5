package service

import (
	"sync"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/pkg/cryptox"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultChallengeTTL bounds how long a password-verified login may wait
// for its second factor.
const DefaultChallengeTTL = 5 * time.Minute

// ChallengeCache holds pending MFA logins in memory, keyed by the
// fingerprint of the challenge token.
type ChallengeCache struct {
	TTL time.Duration
	Now func() time.Time

	mu    sync.Mutex
	cache *ttlcache.Cache[string, *domain.MFAChallenge]
}

// NewChallengeCache uses DefaultChallengeTTL when ttl is not positive.
func NewChallengeCache(ttl time.Duration) *ChallengeCache {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeCache{
		TTL: ttl,
		Now: time.Now,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, *domain.MFAChallenge](ttl),
			ttlcache.WithDisableTouchOnHit[string, *domain.MFAChallenge](),
		),
	}
}

// Create starts a challenge for userID and returns it with its plaintext
// token.
func (c *ChallengeCache) Create(userID string) (domain.MFAChallenge, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.MFAChallenge{}, err
	}

	ch := &domain.MFAChallenge{
		Token:     token,
		UserID:    userID,
		ExpiresAt: c.Now().Add(c.TTL),
	}
	c.cache.Set(cryptox.FingerprintToken(token), ch, c.TTL)
	return *ch, nil
}

// Get returns a live challenge.
func (c *ChallengeCache) Get(token string) (domain.MFAChallenge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := c.lookup(token)
	if ch == nil {
		return domain.MFAChallenge{}, false
	}
	return *ch, true
}

// RecordFailure increments the attempt counter and returns the new count.
// Unknown challenges report zero.
func (c *ChallengeCache) RecordFailure(token string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := c.lookup(token)
	if ch == nil {
		return 0
	}
	ch.Attempts++
	return ch.Attempts
}

// Delete drops a challenge. Unknown tokens are ignored.
func (c *ChallengeCache) Delete(token string) {
	c.cache.Delete(cryptox.FingerprintToken(token))
}

// DeleteExpired drops expired entries. Called by housekeeping.
func (c *ChallengeCache) DeleteExpired() {
	c.cache.DeleteExpired()
}

// Len counts pending challenges, including expired ones not yet evicted.
func (c *ChallengeCache) Len() int { return c.cache.Len() }

// lookup must be called with mu held. The cache clock and Now may differ
// in tests, so expiry is checked against both.
func (c *ChallengeCache) lookup(token string) *domain.MFAChallenge {
	key := cryptox.FingerprintToken(token)
	item := c.cache.Get(key)
	if item == nil {
		return nil
	}
	ch := item.Value()
	if !c.Now().Before(ch.ExpiresAt) {
		c.cache.Delete(key)
		return nil
	}
	return ch
}
