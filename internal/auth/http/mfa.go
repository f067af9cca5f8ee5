package http

import (
	"net/http"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/service"
	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
)

// MFAHandler handles all MFA-related endpoints. The pre-session endpoints
// authenticate with email and password in the body.
type MFAHandler struct {
	MFAService  *service.MFAService
	UserService *service.UserService
}

// credentials decodes an MFACredentialsRequest and checks the password.
func (h *MFAHandler) credentials(w http.ResponseWriter, r *http.Request) (domain.User, MFACredentialsRequest, bool) {
	var req MFACredentialsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return domain.User{}, req, false
	}

	u, err := h.UserService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return domain.User{}, req, false
	}
	return u, req, true
}

// HandleGenerate handles POST /api/auth/generate-mfa
//
//	@Summary		Start TOTP enrollment
//	@Description	Stores a new pending secret and returns the otpauth URI for authenticator apps. MFA is enforced only after verify-mfa.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MFACredentialsRequest						true	"Credentials"
//	@Success		200		{object}	httpx.Response{data=domain.MFAEnrollment}	"Secret and URI"
//	@Failure		401		{object}	httpx.Response								"Invalid credentials"
//	@Failure		409		{object}	httpx.Response								"MFA already enabled"
//	@Router			/api/auth/generate-mfa [post].
func (h *MFAHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	u, _, ok := h.credentials(w, r)
	if !ok {
		return
	}

	enr, err := h.MFAService.Enroll(r.Context(), u)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "Scan the URI with an authenticator app", enr)
}

// HandleVerify handles POST /api/auth/verify-mfa
//
//	@Summary		Enable MFA
//	@Description	Confirms the pending secret with a current code. Later logins require a code.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MFACredentialsRequest	true	"Credentials and code"
//	@Success		200		{object}	httpx.Response			"MFA enabled"
//	@Failure		400		{object}	httpx.Response			"Invalid code"
//	@Failure		401		{object}	httpx.Response			"Invalid credentials"
//	@Failure		409		{object}	httpx.Response			"MFA already enabled or not set up"
//	@Router			/api/auth/verify-mfa [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	u, req, ok := h.credentials(w, r)
	if !ok {
		return
	}

	if err := h.MFAService.Enable(r.Context(), u, req.Code); err != nil {
		slogx.FromContext(r.Context()).Warn("mfa verification failed", "user_id", u.ID, "err", err)
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "MFA enabled", nil)
}

// HandleView handles POST /api/auth/view-mfa
//
//	@Summary		Show enrollment again
//	@Description	Returns the pending secret and otpauth URI. Refused once MFA is enabled.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MFACredentialsRequest						true	"Credentials"
//	@Success		200		{object}	httpx.Response{data=domain.MFAEnrollment}	"Secret and URI"
//	@Failure		401		{object}	httpx.Response								"Invalid credentials"
//	@Failure		409		{object}	httpx.Response								"MFA not set up or already enabled"
//	@Router			/api/auth/view-mfa [post].
func (h *MFAHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	u, _, ok := h.credentials(w, r)
	if !ok {
		return
	}

	enr, err := h.MFAService.View(u)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "MFA enrollment", enr)
}

// HandleCurrentCode handles POST /api/auth/mfa-code. Only routed in
// development.
//
//	@Summary		Current TOTP code (development only)
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MFACredentialsRequest					true	"Credentials"
//	@Success		200		{object}	httpx.Response{data=MFACodeResponse}	"Current code"
//	@Failure		401		{object}	httpx.Response							"Invalid credentials"
//	@Failure		409		{object}	httpx.Response							"MFA not set up"
//	@Router			/api/auth/mfa-code [post].
func (h *MFAHandler) HandleCurrentCode(w http.ResponseWriter, r *http.Request) {
	u, _, ok := h.credentials(w, r)
	if !ok {
		return
	}

	code, ok := h.MFAService.CurrentCode(u.MFASecret)
	if !ok {
		writeServiceError(w, r, service.ErrMFANotEnrolled)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "Current code", MFACodeResponse{Code: code})
}

// HandleDisable handles DELETE /api/v1/users/me/mfa
//
//	@Summary		Disable MFA
//	@Description	Clears the TOTP secret of the caller after checking a current code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MFACodeRequest	true	"Current code"
//	@Success		200		{object}	httpx.Response	"MFA disabled"
//	@Failure		400		{object}	httpx.Response	"Invalid code"
//	@Failure		401		{object}	httpx.Response	"Authentication required"
//	@Failure		409		{object}	httpx.Response	"MFA not enabled"
//	@Router			/api/v1/users/me/mfa [delete].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := httpx.PrincipalFrom(ctx)

	var req MFACodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	u, err := h.UserService.GetUser(ctx, p.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.MFAService.Disable(ctx, u, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "MFA disabled", nil)
}
