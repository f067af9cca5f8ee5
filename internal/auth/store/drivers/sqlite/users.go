package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/store"
)

const userColumns = `id, email, display_name, password_hash, role, active,
	mfa_enabled_at, mfa_secret, created_at, updated_at`

type usersRepo struct {
	db dbtx
}

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u          domain.User
		role       string
		active     int64
		mfaEnabled sql.NullInt64
		mfaSecret  sql.NullString
		created    int64
		updated    int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &active,
		&mfaEnabled, &mfaSecret, &created, &updated)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Role = domain.Role(role)
	u.Active = active != 0
	u.MFAEnabled = fromNullMillis(mfaEnabled)
	u.MFASecret = fromNullString(mfaSecret)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		strings.ToLower(strings.TrimSpace(u.Email)),
		u.DisplayName,
		u.PasswordHash,
		string(u.Role),
		boolInt(u.Active),
		nullMillis(u.MFAEnabled),
		u.MFASecret,
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (r *usersRepo) SetUserActive(ctx context.Context, userID string, active bool) error {
	return r.update(ctx, `UPDATE users SET active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), toMillis(time.Now()), userID)
}

func (r *usersRepo) UpdateMFASecret(ctx context.Context, userID string, secret string) error {
	return r.update(ctx, `UPDATE users SET mfa_secret = ?, updated_at = ? WHERE id = ?`,
		secret, toMillis(time.Now()), userID)
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string, at time.Time) error {
	return r.update(ctx, `
		UPDATE users SET mfa_enabled_at = ?, updated_at = ?
		WHERE id = ? AND mfa_secret IS NOT NULL`,
		toMillis(at), toMillis(time.Now()), userID)
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	return r.update(ctx, `
		UPDATE users SET mfa_enabled_at = NULL, mfa_secret = NULL, updated_at = ?
		WHERE id = ?`,
		toMillis(time.Now()), userID)
}

// update runs a single-row UPDATE and reports ErrNotFound when no row matched.
func (r *usersRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
