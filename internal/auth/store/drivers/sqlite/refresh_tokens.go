package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, created_at, updated_at`

type refreshTokensRepo struct {
	db dbtx
}

func scanRefreshToken(row interface{ Scan(...any) error }) (domain.RefreshToken, error) {
	var (
		t                         domain.RefreshToken
		expires, created, updated int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &expires, &created, &updated); err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ExpiresAt = fromMillis(expires)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return t, nil
}

// UpsertRefreshToken is a single INSERT .. ON CONFLICT statement, so the
// replace is atomic without an explicit transaction. The row id and
// created_at of an existing record are preserved.
func (r *refreshTokensRepo) UpsertRefreshToken(ctx context.Context, t domain.RefreshToken) (domain.RefreshToken, error) {
	now := toMillis(time.Now())

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			token_hash = excluded.token_hash,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
		RETURNING `+refreshTokenColumns,
		t.ID, t.UserID, t.TokenHash, toMillis(t.ExpiresAt), now, now,
	)

	stored, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, mapConstraint(err)
	}
	stored.Token = t.Token
	return stored, nil
}

func (r *refreshTokensRepo) GetRefreshTokenByUser(ctx context.Context, userID string) (domain.RefreshToken, error) {
	return scanRefreshToken(r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = ?`, userID))
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	return scanRefreshToken(r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash))
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, toMillis(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
