package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/store"
	"github.com/aussiebroadwan/teamhub/pkg/cryptox"
	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/idx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
)

// MinPasswordLength applies to registration only.
const MinPasswordLength = 8

// UserService registers and authenticates accounts and resolves them for
// the authentication gate.
type UserService struct {
	Store     store.Store
	Passwords cryptox.PasswordHasher
}

// NormalizeEmail lower-cases and validates a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidInput
	}
	return email, nil
}

// Register creates a password account. The first account ever created is
// bootstrapped as ADMIN; every later one is a USER.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (domain.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if len(password) < MinPasswordLength {
		return domain.User{}, ErrInvalidInput
	}

	hash, err := s.Passwords.Hash(password)
	if err != nil {
		return domain.User{}, err
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email[:strings.IndexByte(email, '@')]
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.create(ctx, &u); err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// create assigns the role and inserts u in one transaction so two racing
// first registrations cannot both become ADMIN.
func (s *UserService) create(ctx context.Context, u *domain.User) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.Users().CountUsers(ctx)
		if err != nil {
			return err
		}

		u.Role = domain.RoleUser
		if n == 0 {
			u.Role = domain.RoleAdmin
		}
		return tx.Users().CreateUser(ctx, *u)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrEmailTaken
	}
	if err != nil {
		return storeErr("create user", err)
	}
	return nil
}

// Authenticate checks a password login. Unknown emails, OAuth-only
// accounts and wrong passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, storeErr("get user", err)
	}

	if u.PasswordHash == "" || s.Passwords.Verify(password, u.PasswordHash) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		return domain.User{}, ErrAccountDisabled
	}
	return u, nil
}

// ResolveUser loads an active account by email. Missing and inactive
// accounts both yield ErrIdentityNotFound.
func (s *UserService) ResolveUser(ctx context.Context, email string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrIdentityNotFound
	}
	if err != nil {
		return domain.User{}, storeErr("get user", err)
	}
	if !u.Active {
		return domain.User{}, ErrIdentityNotFound
	}
	return u, nil
}

// ResolveEmail implements httpx.IdentityResolver.
func (s *UserService) ResolveEmail(ctx context.Context, email string) (httpx.Principal, error) {
	u, err := s.ResolveUser(ctx, email)
	if err != nil {
		return httpx.Principal{}, err
	}
	return PrincipalOf(u), nil
}

// GetUser fetches a user by id regardless of status.
func (s *UserService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrIdentityNotFound
	}
	if err != nil {
		return domain.User{}, storeErr("get user", err)
	}
	return u, nil
}

// SetActive enables or disables an account. Disabled accounts stop
// resolving at the gate immediately; outstanding access tokens become
// useless even though they still verify.
func (s *UserService) SetActive(ctx context.Context, userID string, active bool) error {
	err := s.Store.Users().SetUserActive(ctx, userID, active)
	if errors.Is(err, store.ErrNotFound) {
		return ErrIdentityNotFound
	}
	if err != nil {
		return storeErr("set user active", err)
	}
	slogx.FromContext(ctx).Info("user status changed", "user_id", userID, "active", active)
	return nil
}

// PrincipalOf builds the security context of u.
func PrincipalOf(u domain.User) httpx.Principal {
	return httpx.Principal{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        string(u.Role),
		Authorities: u.Role.AuthorityStrings(),
	}
}
