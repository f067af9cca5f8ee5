package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by the sqlite driver.
// Sub-repositories are exposed as methods so a Tx can hand out the same
// repos bound to the transaction.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	Identities() Identities

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	// Inside fn only the repos of tx may be used.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users persists accounts. Lookups return ErrNotFound for missing rows.
type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches the lower-cased email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser fails with ErrAlreadyExists on a duplicate email.
	CreateUser(ctx context.Context, u domain.User) error

	CountUsers(ctx context.Context) (int64, error)

	SetUserActive(ctx context.Context, userID string, active bool) error

	// UpdateMFASecret stores a pending secret without enabling MFA.
	UpdateMFASecret(ctx context.Context, userID string, secret string) error

	// EnableMFA stamps mfa_enabled_at.
	EnableMFA(ctx context.Context, userID string, at time.Time) error

	// DisableMFA clears both the secret and the enabled stamp.
	DisableMFA(ctx context.Context, userID string) error
}

// RefreshTokens holds at most one refresh token per user.
type RefreshTokens interface {
	// UpsertRefreshToken inserts the user's token or atomically replaces the
	// hash and expiry of the existing one. Concurrent calls for the same user
	// leave exactly one row, last writer wins, and never surface a
	// uniqueness violation.
	UpsertRefreshToken(ctx context.Context, t domain.RefreshToken) (domain.RefreshToken, error)

	GetRefreshTokenByUser(ctx context.Context, userID string) (domain.RefreshToken, error)
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// DeleteExpiredRefreshTokens removes rows that expired before the cutoff
	// and reports how many were removed.
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

// Identities links OAuth2 provider subjects to local users.
type Identities interface {
	GetIdentityLink(ctx context.Context, provider, subject string) (domain.IdentityLink, error)
	CreateIdentityLink(ctx context.Context, l domain.IdentityLink) error
	ListIdentityLinksByUser(ctx context.Context, userID string) ([]domain.IdentityLink, error)
}
