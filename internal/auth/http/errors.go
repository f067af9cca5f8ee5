package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/teamhub/internal/auth/oauth"
	"github.com/aussiebroadwan/teamhub/internal/auth/service"
	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// Order matters: the first match wins. Every credential failure shares one
// response so clients cannot tell which step failed.
var errorMappings = []errorMapping{
	{httpx.ErrBadRequestBody, http.StatusBadRequest, "invalid_request", "Invalid request body"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_request", "A valid email and a password of at least 8 characters are required"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"},
	{service.ErrIdentityNotFound, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"},
	{service.ErrInvalidRefresh, http.StatusUnauthorized, "invalid_token", "Invalid or expired token"},
	{service.ErrTokenExpired, http.StatusUnauthorized, "invalid_token", "Invalid or expired token"},
	{service.ErrTokenInvalid, http.StatusUnauthorized, "invalid_token", "Invalid or expired token"},
	{service.ErrInvalidState, http.StatusUnauthorized, "unauthorized", "Authentication required"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication required"},
	{service.ErrAccountDisabled, http.StatusForbidden, "account_disabled", "Account is disabled"},
	{service.ErrUnverifiedEmail, http.StatusForbidden, "unverified_email", "The provider did not verify this email address"},
	{service.ErrEmailTaken, http.StatusConflict, "email_taken", "Email is already registered"},
	{service.ErrInvalidCode, http.StatusBadRequest, "invalid_code", "Invalid verification code"},
	{service.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts", "Too many attempts, please log in again"},
	{service.ErrMFAAlreadyEnabled, http.StatusConflict, "mfa_already_enabled", "MFA is already enabled"},
	{service.ErrMFANotEnabled, http.StatusConflict, "mfa_not_enabled", "MFA is not enabled"},
	{service.ErrMFANotEnrolled, http.StatusConflict, "mfa_not_enrolled", "MFA has not been set up"},
	{oauth.ErrUnknownProvider, http.StatusNotFound, "unknown_provider", "Unknown identity provider"},
	{service.ErrStoreUnavailable, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable"},
}

// writeServiceError maps a service error onto the response envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				log.Error("request failed", "err", err)
			} else {
				log.Debug("request rejected", "code", m.code, "err", err)
			}
			httpx.WriteError(w, m.status, m.code, m.message)
			return
		}
	}

	log.Error("unexpected error", "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
}
