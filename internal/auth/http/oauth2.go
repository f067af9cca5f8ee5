package http

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/aussiebroadwan/teamhub/internal/auth/service"
	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
)

// OAuthHandler runs the external provider login.
type OAuthHandler struct {
	OAuthService *service.OAuthService

	// SuccessRedirect, when set, receives the token pair in the URL
	// fragment instead of a JSON body.
	SuccessRedirect string
}

// HandleAuthorize handles GET /oauth2/authorization/{provider}
//
//	@Summary		Start provider login
//	@Description	Redirects to the identity provider with a one-time state and a PKCE S256 challenge.
//	@Tags			OAuth2
//	@Param			provider	path	string	true	"Provider name"	example(google)
//	@Success		302
//	@Failure		404	{object}	httpx.Response	"Unknown provider"
//	@Router			/oauth2/authorization/{provider} [get].
func (h *OAuthHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.OAuthService.Begin(r.PathValue("provider"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// HandleCallback handles GET /login/oauth2/code/{provider}
//
//	@Summary		Provider callback
//	@Description	Exchanges the authorization code, links or creates the local account and issues a token pair.
//	@Tags			OAuth2
//	@Produce		json
//	@Param			provider	path		string									true	"Provider name"
//	@Param			state		query		string									true	"State from the authorization request"
//	@Param			code		query		string									true	"Authorization code"
//	@Success		200			{object}	httpx.Response{data=domain.TokenPair}	"Token pair"
//	@Success		302			"Redirect to the frontend with tokens in the fragment"
//	@Failure		401			{object}	httpx.Response	"Invalid state or rejected by provider"
//	@Failure		403			{object}	httpx.Response	"Account disabled or unverified email"
//	@Router			/login/oauth2/code/{provider} [get].
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	provider := r.PathValue("provider")

	if e := q.Get("error"); e != "" {
		slogx.FromContext(ctx).Warn("provider returned error", "provider", provider, "error", e)
		writeServiceError(w, r, service.ErrUnauthorized)
		return
	}

	pair, err := h.OAuthService.Complete(ctx, provider, q.Get("state"), q.Get("code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if h.SuccessRedirect == "" {
		httpx.WriteOK(w, http.StatusOK, "Logged in", pair)
		return
	}

	frag := url.Values{}
	frag.Set("accessToken", pair.AccessToken)
	frag.Set("refreshToken", pair.RefreshToken)
	frag.Set("tokenType", pair.TokenType)
	frag.Set("expiresIn", strconv.FormatInt(pair.ExpiresIn, 10))

	httpx.NoCache(w)
	http.Redirect(w, r, h.SuccessRedirect+"#"+frag.Encode(), http.StatusFound)
}
