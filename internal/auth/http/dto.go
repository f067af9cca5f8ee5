package http

import (
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
)

type RegisterRequest struct {
	Email       string `json:"email" example:"alice@example.com"`
	Password    string `json:"password" example:"correct horse battery"`
	DisplayName string `json:"displayName,omitempty" example:"Alice"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"correct horse battery"`
}

type LoginMFARequest struct {
	MFAToken string `json:"mfaToken"`
	Code     string `json:"code" example:"123456"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// MFACredentialsRequest authenticates the MFA management endpoints that
// run before a session exists. Code is only read by verify-mfa.
type MFACredentialsRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"correct horse battery"`
	Code     string `json:"code,omitempty" example:"123456"`
}

type MFACodeRequest struct {
	Code string `json:"code" example:"123456"`
}

type MFACodeResponse struct {
	Code string `json:"code" example:"123456"`
}

type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	Authorities []string  `json:"authorities"`
	Active      bool      `json:"active"`
	MFAEnabled  bool      `json:"mfaEnabled"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		Authorities: u.Role.AuthorityStrings(),
		Active:      u.Active,
		MFAEnabled:  u.HasMFA(),
		CreatedAt:   u.CreatedAt,
	}
}

type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Uptime  string            `json:"uptime" example:"1h2m3s"`
	Version string            `json:"version" example:"0.1.0"`
	Checks  map[string]string `json:"checks,omitempty"`
}
