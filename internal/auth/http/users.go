package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/teamhub/internal/auth/service"
	"github.com/aussiebroadwan/teamhub/internal/realtime"
	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
)

type UserHandler struct {
	UserService *service.UserService
}

// HandleMe handles GET /api/v1/users/me
//
//	@Summary		Current user
//	@Description	Returns the profile and authorities of the authenticated caller.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	httpx.Response{data=UserResponse}	"Profile"
//	@Failure		401	{object}	httpx.Response						"Authentication required"
//	@Router			/api/v1/users/me [get].
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PrincipalFrom(r.Context())

	u, err := h.UserService.GetUser(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "Current user", newUserResponse(u))
}

// AdminHandler serves ADMIN-only operations.
type AdminHandler struct {
	UserService *service.UserService
	Realtime    *realtime.Server
}

// HandleSessions handles GET /api/v1/admin/realtime/sessions
//
//	@Summary		Realtime sessions
//	@Description	Lists open realtime connections and the principal bound at CONNECT, oldest first.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	httpx.Response{data=[]realtime.Session}	"Sessions"
//	@Failure		401	{object}	httpx.Response							"Authentication required"
//	@Failure		403	{object}	httpx.Response							"ADMIN authority required"
//	@Router			/api/v1/admin/realtime/sessions [get].
func (h *AdminHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := []realtime.Session{}
	if h.Realtime != nil {
		sessions = append(sessions, h.Realtime.Sessions()...)
	}
	httpx.WriteOK(w, http.StatusOK, "Realtime sessions", sessions)
}

// HandleSetActive handles PUT /api/v1/admin/users/{id}/active
//
//	@Summary		Enable or disable an account
//	@Description	Disabled accounts stop resolving immediately, so their outstanding access tokens no longer authenticate.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"User ID"
//	@Param			request	body		SetActiveRequest	true	"New status"
//	@Success		200		{object}	httpx.Response		"Status updated"
//	@Failure		400		{object}	httpx.Response		"Missing active flag"
//	@Failure		401		{object}	httpx.Response		"Authentication required"
//	@Failure		403		{object}	httpx.Response		"ADMIN authority required"
//	@Failure		404		{object}	httpx.Response		"User not found"
//	@Router			/api/v1/admin/users/{id}/active [put].
func (h *AdminHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req SetActiveRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Active == nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "active is required")
		return
	}

	id := r.PathValue("id")
	p, _ := httpx.PrincipalFrom(ctx)
	if id == p.UserID && !*req.Active {
		httpx.WriteError(w, http.StatusConflict, "invalid_request", "Administrators cannot disable themselves")
		return
	}

	if err := h.UserService.SetActive(ctx, id, *req.Active); err != nil {
		if errors.Is(err, service.ErrIdentityNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "User not found")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	log.Info("account status changed by admin", "admin_id", p.UserID, "user_id", id, "active", *req.Active)
	httpx.WriteOK(w, http.StatusOK, "Status updated", nil)
}
