// Package redis stores refresh tokens in Redis for deployments that share
// sessions between several instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/store"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this driver.
const DefaultPrefix = "teamhub:refresh"

const maxUpsertRetries = 50

var errRetriesExhausted = errors.New("redis: refresh token upsert kept conflicting")

// RefreshTokens keeps one hash per user plus a token-hash index key. Both
// keys expire with the token, so expired tokens disappear on their own.
type RefreshTokens struct {
	rdb    goredis.UniversalClient
	prefix string
}

var _ store.RefreshTokens = (*RefreshTokens)(nil)

// NewRefreshTokens namespaces keys under prefix, or DefaultPrefix when empty.
func NewRefreshTokens(rdb goredis.UniversalClient, prefix string) *RefreshTokens {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RefreshTokens{rdb: rdb, prefix: prefix}
}

func (r *RefreshTokens) userKey(userID string) string { return r.prefix + ":user:" + userID }
func (r *RefreshTokens) hashKey(hash string) string   { return r.prefix + ":hash:" + hash }

// UpsertRefreshToken runs an optimistic WATCH/MULTI transaction on the user
// key and retries when a concurrent writer got there first.
func (r *RefreshTokens) UpsertRefreshToken(ctx context.Context, t domain.RefreshToken) (domain.RefreshToken, error) {
	userKey := r.userKey(t.UserID)
	newHashKey := r.hashKey(t.TokenHash)

	var stored domain.RefreshToken
	upsert := func(tx *goredis.Tx) error {
		prev, err := tx.HGetAll(ctx, userKey).Result()
		if err != nil {
			return err
		}

		owner, err := tx.Get(ctx, newHashKey).Result()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		case owner != t.UserID:
			return store.ErrAlreadyExists
		}

		now := time.Now().UTC()
		stored = domain.RefreshToken{
			ID:        t.ID,
			UserID:    t.UserID,
			TokenHash: t.TokenHash,
			ExpiresAt: t.ExpiresAt.UTC().Truncate(time.Millisecond),
			CreatedAt: now.Truncate(time.Millisecond),
			UpdatedAt: now.Truncate(time.Millisecond),
		}
		if len(prev) > 0 {
			if old, err := decodeRefreshToken(prev); err == nil {
				stored.ID = old.ID
				stored.CreatedAt = old.CreatedAt
			}
		}

		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			if oldHash := prev["token_hash"]; oldHash != "" && oldHash != t.TokenHash {
				p.Del(ctx, r.hashKey(oldHash))
			}
			p.HSet(ctx, userKey, encodeRefreshToken(stored))
			p.PExpireAt(ctx, userKey, stored.ExpiresAt)
			p.Set(ctx, newHashKey, t.UserID, 0)
			p.PExpireAt(ctx, newHashKey, stored.ExpiresAt)
			return nil
		})
		return err
	}

	for range maxUpsertRetries {
		err := r.rdb.Watch(ctx, upsert, userKey, newHashKey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.RefreshToken{}, err
		}
		stored.Token = t.Token
		return stored, nil
	}
	return domain.RefreshToken{}, errRetriesExhausted
}

func (r *RefreshTokens) GetRefreshTokenByUser(ctx context.Context, userID string) (domain.RefreshToken, error) {
	fields, err := r.rdb.HGetAll(ctx, r.userKey(userID)).Result()
	if err != nil {
		return domain.RefreshToken{}, err
	}
	if len(fields) == 0 {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return decodeRefreshToken(fields)
}

func (r *RefreshTokens) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	userID, err := r.rdb.Get(ctx, r.hashKey(hash)).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.RefreshToken{}, err
	}

	t, err := r.GetRefreshTokenByUser(ctx, userID)
	if err != nil {
		return domain.RefreshToken{}, err
	}
	// A stale index entry may outlive a replacement by a few milliseconds.
	if t.TokenHash != hash {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return t, nil
}

// DeleteExpiredRefreshTokens is a no-op: keys carry the token expiry as
// their TTL.
func (r *RefreshTokens) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// Ping verifies the connection.
func (r *RefreshTokens) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func encodeRefreshToken(t domain.RefreshToken) map[string]any {
	return map[string]any{
		"id":         t.ID,
		"user_id":    t.UserID,
		"token_hash": t.TokenHash,
		"expires_at": t.ExpiresAt.UnixMilli(),
		"created_at": t.CreatedAt.UnixMilli(),
		"updated_at": t.UpdatedAt.UnixMilli(),
	}
}

func decodeRefreshToken(f map[string]string) (domain.RefreshToken, error) {
	millis := func(k string) (time.Time, error) {
		ms, err := strconv.ParseInt(f[k], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("redis: decode %s: %w", k, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	}

	t := domain.RefreshToken{ID: f["id"], UserID: f["user_id"], TokenHash: f["token_hash"]}
	var err error
	if t.ExpiresAt, err = millis("expires_at"); err != nil {
		return domain.RefreshToken{}, err
	}
	if t.CreatedAt, err = millis("created_at"); err != nil {
		return domain.RefreshToken{}, err
	}
	if t.UpdatedAt, err = millis("updated_at"); err != nil {
		return domain.RefreshToken{}, err
	}
	return t, nil
}
