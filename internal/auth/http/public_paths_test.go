package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	authhttp "github.com/aussiebroadwan/teamhub/internal/auth/http"
	"github.com/stretchr/testify/require"
)

func TestPublicPaths(t *testing.T) {
	public := authhttp.PublicPaths()

	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/api/auth/login", true},
		{http.MethodPost, "/api/auth/login-mfa", true},
		{http.MethodPost, "/api/auth/refresh", true},
		{http.MethodGet, "/oauth2/authorization/google", true},
		{http.MethodGet, "/login/oauth2/code/google", true},
		{http.MethodGet, "/actuator/health", true},
		{http.MethodGet, "/ws/websocket", true},
		{http.MethodGet, "/ws-meeting/websocket", true},
		{http.MethodGet, "/.well-known/openid-configuration", true},
		{http.MethodPost, "/api/meetings/join/guest", true},
		{http.MethodGet, "/api/meetings/validate/ABC-123", true},
		{http.MethodGet, "/api/meetings/ABC-123", true},
		{http.MethodPost, "/api/meetings/ABC-123", false},
		{http.MethodGet, "/api/meetings/abc-123", false},
		{http.MethodGet, "/api/meetings/ABC-123/participants", false},
		{http.MethodGet, "/api/v1/users/me", false},
		{http.MethodGet, "/api/v1/admin/realtime/sessions", false},
		{http.MethodGet, "/swagger/index.html", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			require.Equal(t, tt.want, public.Match(r))
		})
	}
}
