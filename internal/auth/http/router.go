package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/domain"
	"github.com/aussiebroadwan/teamhub/internal/auth/service"
	"github.com/aussiebroadwan/teamhub/internal/auth/store"
	"github.com/aussiebroadwan/teamhub/internal/realtime"
	"github.com/aussiebroadwan/teamhub/internal/telemetry"
	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"

	_ "github.com/aussiebroadwan/teamhub/api/teamhub" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	// accountLimit is shared by every route that checks a password.
	accountLimit httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	UserService  *service.UserService
	TokenService *service.TokenService
	MFAService   *service.MFAService
	OAuthService *service.OAuthService // Optional: nil when no provider is configured
	Realtime     *realtime.Server      // Optional: nil disables /ws/ and /ws-meeting/
	Metrics      *telemetry.Metrics

	// DevMode routes /api/auth/mfa-code.
	DevMode bool

	OAuthSuccessRedirect string
}

// NewRouter returns a router with no routes. Set the services and call
// ApplyRoutes before serving.
func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}
}

// ApplyRoutes registers every route and builds the global chain. Services
// must be set before calling it.
func (r *Router) ApplyRoutes() {
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.AuthnMiddleware(r.TokenService, r.UserService, PublicPaths(), r.Metrics.AuthnOutcome),
	}
	r.accountLimit = httpx.RateLimitByJSONField(httpx.AccountLimit, "email")

	r.registerAuth()
	r.registerMFA()
	r.registerUsers()
	r.registerAdmin()
	r.registerOAuth2()
	r.registerRealtime()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			TeamHub API
//	@version		0.1.0
//	@description	Authentication and realtime session core of TeamHub.
//	@description
//	@description				Access tokens are HS256 JWTs; every protected route expects "Authorization: Bearer {token}".
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/teamhub
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		UserService:  r.UserService,
		TokenService: r.TokenService,
	}

	// Credential endpoints are limited per client and email, and password
	// checks also per account.
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
			r.accountLimit,
		),
	)
	r.Mux.Handle("POST /api/auth/login-mfa",
		httpx.Chain(http.HandlerFunc(h.HandleLoginMFA),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{
		MFAService:  r.MFAService,
		UserService: r.UserService,
	}

	// Each of these checks a password, so they share the login limits.
	limit := httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email")
	credentials := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, limit, r.accountLimit)
	}

	r.Mux.Handle("POST /api/auth/generate-mfa", credentials(h.HandleGenerate))
	r.Mux.Handle("POST /api/auth/verify-mfa", credentials(h.HandleVerify))
	r.Mux.Handle("POST /api/auth/view-mfa", credentials(h.HandleView))

	if r.DevMode {
		r.Mux.Handle("POST /api/auth/mfa-code", credentials(h.HandleCurrentCode))
	}

	r.Mux.Handle("DELETE /api/v1/users/me/mfa",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.RequireAuthenticated(),
			httpx.RateLimitByPrincipal(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UserHandler{UserService: r.UserService}

	r.Mux.Handle("GET /api/v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.RequireAuthenticated(),
			httpx.RateLimitByPrincipal(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		UserService: r.UserService,
		Realtime:    r.Realtime,
	}
	admin := httpx.RequireAuthority(string(domain.AuthorityAdmin))

	r.Mux.Handle("GET /api/v1/admin/realtime/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleSessions), admin),
	)
	r.Mux.Handle("PUT /api/v1/admin/users/{id}/active",
		httpx.Chain(http.HandlerFunc(h.HandleSetActive), admin),
	)
}

func (r *Router) registerOAuth2() {
	if r.OAuthService == nil {
		return
	}

	h := &OAuthHandler{
		OAuthService:    r.OAuthService,
		SuccessRedirect: r.OAuthSuccessRedirect,
	}

	r.Mux.Handle("GET /oauth2/authorization/{provider}",
		httpx.Chain(http.HandlerFunc(h.HandleAuthorize),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /login/oauth2/code/{provider}",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerRealtime() {
	if r.Realtime == nil {
		return
	}

	r.Mux.Handle("GET /ws/", r.Realtime)
	r.Mux.Handle("GET /ws-meeting/", r.Realtime)
}

func (r *Router) registerSystem() {
	r.Mux.HandleFunc("GET /actuator/health", HealthHandler(r.startTime, r.buildVersion, r.store))
	r.Mux.Handle("GET /actuator/prometheus", r.Metrics.Handler())
}
