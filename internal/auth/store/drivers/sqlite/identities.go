package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
)

type identitiesRepo struct {
	db dbtx
}

func (r *identitiesRepo) GetIdentityLink(ctx context.Context, provider, subject string) (domain.IdentityLink, error) {
	var (
		l       domain.IdentityLink
		created int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT provider, subject, user_id, email, created_at
		FROM identity_links WHERE provider = ? AND subject = ?`,
		provider, subject,
	).Scan(&l.Provider, &l.Subject, &l.UserID, &l.Email, &created)
	if err != nil {
		return domain.IdentityLink{}, mapNotFound(err)
	}
	l.CreatedAt = fromMillis(created)
	return l, nil
}

func (r *identitiesRepo) CreateIdentityLink(ctx context.Context, l domain.IdentityLink) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identity_links (provider, subject, user_id, email, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.Provider, l.Subject, l.UserID, strings.ToLower(l.Email), toMillis(l.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *identitiesRepo) ListIdentityLinksByUser(ctx context.Context, userID string) ([]domain.IdentityLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT provider, subject, user_id, email, created_at
		FROM identity_links WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IdentityLink
	for rows.Next() {
		var (
			l       domain.IdentityLink
			created int64
		)
		if err := rows.Scan(&l.Provider, &l.Subject, &l.UserID, &l.Email, &created); err != nil {
			return nil, err
		}
		l.CreatedAt = fromMillis(created)
		out = append(out, l)
	}
	return out, rows.Err()
}
