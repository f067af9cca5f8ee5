package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/service"
	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
)

// AuthHandler serves the password login flows.
type AuthHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

// HandleRegister handles POST /api/auth/register
//
//	@Summary		Register an account
//	@Description	Creates a password account. The first account ever registered becomes ADMIN.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RegisterRequest								true	"Account details"
//	@Success		201		{object}	httpx.Response{data=UserResponse}			"Account created"
//	@Failure		400		{object}	httpx.Response								"Invalid email or password too short"
//	@Failure		409		{object}	httpx.Response								"Email already registered"
//	@Failure		429		{object}	httpx.Response								"Rate limit exceeded"
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	u, err := h.UserService.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusCreated, "Registered", newUserResponse(u))
}

// HandleLogin handles POST /api/auth/login
//
//	@Summary		Password login
//	@Description	Verifies email and password. Returns a token pair, or an MFA challenge when the account has MFA enabled.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest										true	"Credentials"
//	@Success		200		{object}	httpx.Response{data=domain.TokenPair}				"Token pair, or domain.MFAChallengeResponse when MFA is enabled"
//	@Failure		401		{object}	httpx.Response										"Invalid credentials"
//	@Failure		403		{object}	httpx.Response										"Account disabled"
//	@Failure		429		{object}	httpx.Response										"Rate limit exceeded"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	pair, challenge, err := h.TokenService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slogx.FromContext(r.Context()).Info("login failed", "err", err)
		writeServiceError(w, r, err)
		return
	}

	if challenge != nil {
		httpx.WriteOK(w, http.StatusOK, "MFA code required", domain.MFAChallengeResponse{
			MFARequired: true,
			MFAToken:    challenge.Token,
			ExpiresIn:   int64(h.TokenService.Challenges.TTL / time.Second),
		})
		return
	}

	httpx.WriteOK(w, http.StatusOK, "Logged in", pair)
}

// HandleLoginMFA handles POST /api/auth/login-mfa
//
//	@Summary		Complete an MFA login
//	@Description	Exchanges the challenge token from login and a current TOTP code for a token pair.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginMFARequest							true	"Challenge and code"
//	@Success		200		{object}	httpx.Response{data=domain.TokenPair}	"Token pair"
//	@Failure		400		{object}	httpx.Response							"Invalid code"
//	@Failure		401		{object}	httpx.Response							"Unknown or expired challenge"
//	@Failure		429		{object}	httpx.Response							"Too many attempts"
//	@Router			/api/auth/login-mfa [post].
func (h *AuthHandler) HandleLoginMFA(w http.ResponseWriter, r *http.Request) {
	var req LoginMFARequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.TokenService.LoginMFA(r.Context(), req.MFAToken, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "Logged in", pair)
}

// HandleRefresh handles POST /api/auth/refresh
//
//	@Summary		Refresh tokens
//	@Description	Exchanges the current refresh token for a new pair. The presented refresh token stops working.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RefreshRequest							true	"Refresh token"
//	@Success		200		{object}	httpx.Response{data=domain.TokenPair}	"Token pair"
//	@Failure		401		{object}	httpx.Response							"Invalid or expired refresh token"
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.TokenService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "Token refreshed", pair)
}
