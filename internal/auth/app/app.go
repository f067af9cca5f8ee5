package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/teamhub/internal/auth/http"
	"github.com/aussiebroadwan/teamhub/internal/auth/oauth"
	"github.com/aussiebroadwan/teamhub/internal/auth/service"
	"github.com/aussiebroadwan/teamhub/internal/auth/store"
	redisstore "github.com/aussiebroadwan/teamhub/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/teamhub/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/teamhub/internal/realtime"
	"github.com/aussiebroadwan/teamhub/internal/telemetry"
	"github.com/aussiebroadwan/teamhub/pkg/cryptox"
	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/aussiebroadwan/teamhub/pkg/jwtx"
	"github.com/aussiebroadwan/teamhub/pkg/slogx"
	goredis "github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time via -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application encapsulates the service with all its dependencies
type Application struct {
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics

	// Core dependencies
	db            *sqlite.Store
	rdb           goredis.UniversalClient // nil unless AUTH_REFRESH_STORE=redis
	refreshTokens store.RefreshTokens
	codec         *jwtx.HS256Codec

	// Services
	userService         *service.UserService
	tokenService        *service.TokenService
	mfaService          *service.MFAService
	oauthService        *service.OAuthService // nil when no provider is configured
	housekeepingService *service.HousekeepingService

	realtime *realtime.Server

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "teamhub",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: telemetry.New(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initRefreshStore(); err != nil {
		app.closeStores()
		return nil, err
	}

	codec, err := InitCodec(cfg, app.logger)
	if err != nil {
		app.closeStores()
		return nil, err
	}
	app.codec = codec

	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initRealtime()
	if err := app.initHTTP(); err != nil {
		app.closeStores()
		return nil, err
	}

	return app, nil
}

// Handler exposes the routed HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("teamhub starting", "port", app.cfg.Port, "version", BuildVersion, "refresh_store", app.cfg.RefreshStore)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down teamhub...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Hijacked websocket connections are not tracked by http.Server.
	if err := app.realtime.Shutdown(ctx); err != nil {
		app.logger.Warn("realtime shutdown incomplete", "error", err)
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("teamhub stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initRefreshStore picks the refresh token backend. Redis lets several
// instances share refresh sessions; users stay in SQLite either way.
func (app *Application) initRefreshStore() error {
	if app.cfg.RefreshStore != RefreshStoreRedis {
		app.refreshTokens = app.db.RefreshTokens()
		return nil
	}

	app.rdb = goredis.NewClient(&goredis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	rt := redisstore.NewRefreshTokens(app.rdb, redisstore.DefaultPrefix)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.refreshTokens = rt
	app.logger.Info("refresh tokens stored in redis", "addr", app.cfg.RedisAddr, "db", app.cfg.RedisDB)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	app.userService = &service.UserService{
		Store:     app.db,
		Passwords: cryptox.PasswordHasher{Pepper: pepper},
	}

	app.mfaService = service.NewMFAService(app.db, app.cfg.MFAIssuer)
	app.mfaService.Skew = uint(app.cfg.MFASkew)

	challenges := service.NewChallengeCache(service.DefaultChallengeTTL)

	app.tokenService = &service.TokenService{
		Codec:         app.codec,
		RefreshTokens: app.refreshTokens,
		Users:         app.userService,
		MFA:           app.mfaService,
		Challenges:    challenges,
		AccessTTL:     app.cfg.AccessTTL,
		RefreshTTL:    app.cfg.RefreshTTL,
		Metrics:       app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.refreshTokens,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Retention = app.cfg.RefreshRetention
	app.housekeepingService.Metrics = app.metrics
	app.housekeepingService.Sweepers = []service.Sweeper{challenges}

	providers, err := app.initProviders()
	if err != nil {
		return err
	}
	if len(providers.Names()) > 0 {
		app.oauthService = service.NewOAuthService(app.db, app.userService, app.tokenService, providers)
		app.housekeepingService.Sweepers = append(app.housekeepingService.Sweepers, app.oauthService)
		app.logger.Info("oauth2 login enabled", "providers", providers.Names())
	}

	return nil
}

// initProviders runs OIDC discovery for every configured provider.
func (app *Application) initProviders() (*oauth.Registry, error) {
	var list []oauth.Provider

	if app.cfg.GoogleEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		google, err := oauth.NewGoogle(ctx, app.cfg.OAuthGoogleClientID, app.cfg.OAuthGoogleClientSecret, app.cfg.OAuthGoogleRedirectURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize google login: %w", err)
		}
		list = append(list, google)
	}

	return oauth.NewRegistry(list...), nil
}

func (app *Application) initRealtime() {
	auth := &realtime.HandshakeAuthenticator{
		Tokens:     app.tokenService,
		Identities: app.userService,
		Registry:   realtime.NewRegistry(),
		Observe:    app.metrics.HandshakeOutcome,
	}
	broker := realtime.NewBroker()
	broker.Metrics = app.metrics

	app.realtime = realtime.NewServer(auth, broker, app.cfg.WSAllowedOrigins, app.metrics)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	if err := httpx.SetTrustedProxies(app.cfg.TrustedProxies); err != nil {
		return fmt.Errorf("failed to configure trusted proxies: %w", err)
	}

	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.UserService = app.userService
	router.TokenService = app.tokenService
	router.MFAService = app.mfaService
	router.OAuthService = app.oauthService
	router.Realtime = app.realtime
	router.Metrics = app.metrics
	router.DevMode = app.cfg.IsDev()
	router.OAuthSuccessRedirect = app.cfg.OAuthSuccessRedirect
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
