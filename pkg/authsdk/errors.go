package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-success response from the service.
type APIError struct {
	StatusCode int
	Code       string // machine readable, e.g. "invalid_credentials"
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("teamhub: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// MFARequiredError is returned by Login for accounts with MFA enabled.
// Complete the login with SDKClient.LoginMFA.
type MFARequiredError struct {
	Token     string
	ExpiresIn int64 // seconds
}

func (e *MFARequiredError) Error() string {
	return "teamhub: mfa code required"
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// IsCode reports whether err is an APIError with the given error code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse builds an APIError from an envelope, falling back to
// the status text for bodies that are not one (plain 404s, proxies).
func parseErrorResponse(resp *http.Response, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_")),
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Code: env.Error, Message: env.Message}
}
