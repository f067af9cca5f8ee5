package service

import (
	"errors"
	"fmt"
)

// Authentication failures. Callers map these with errors.Is; clients only
// ever see a generic code.
var (
	ErrTokenExpired     = errors.New("token_expired")
	ErrTokenInvalid     = errors.New("token_invalid")
	ErrIdentityNotFound = errors.New("identity_not_found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrStoreUnavailable = errors.New("store_unavailable")
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrAccountDisabled    = errors.New("account_disabled")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidInput       = errors.New("invalid_input")
	ErrInvalidState       = errors.New("invalid_state")
	ErrUnverifiedEmail    = errors.New("unverified_email")
)

var (
	ErrInvalidCode       = errors.New("invalid_code")
	ErrTooManyAttempts   = errors.New("too_many_attempts")
	ErrMFANotEnabled     = errors.New("mfa_not_enabled")
	ErrMFAAlreadyEnabled = errors.New("mfa_already_enabled")
	ErrMFANotEnrolled    = errors.New("mfa_not_enrolled")
)

// storeErr wraps an unexpected store failure so it matches
// ErrStoreUnavailable without losing the cause.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
