package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/joho/godotenv"
)

// Refresh token backends selectable with AUTH_REFRESH_STORE.
const (
	RefreshStoreSQLite = "sqlite"
	RefreshStoreRedis  = "redis"
)

type Config struct {
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	Issuer           string        // Optional: iss claim, checked on verification (default: teamhub)
	JWTSecret        string        // Required: HS256 key, base64 or raw, at least 32 bytes
	AccessTTL        time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTTL       time.Duration // Optional: refresh token lifetime (default: 7 days)
	RefreshRetention time.Duration // Optional: keep expired refresh rows this long (default: 0)

	DatabaseFile  string // Optional: path to SQLite database file (default: ./teamhub.db)
	PepperFile    string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	RefreshStore  string // Optional: sqlite or redis (default: sqlite)
	RedisAddr     string // Required when RefreshStore is redis
	RedisPassword string
	RedisDB       int

	MFAIssuer string // Optional: label shown in authenticator apps (default: TeamHub)
	MFASkew   int    // Optional: accepted 30s windows either side of now (default: 1)

	OAuthGoogleClientID     string // Optional: enables Google login together with the secret
	OAuthGoogleClientSecret string
	OAuthGoogleRedirectURL  string
	OAuthSuccessRedirect    string // Optional: frontend URL receiving tokens in the fragment

	WSAllowedOrigins []string // Optional: comma separated, "*" allows any origin
	TrustedProxies   []string // Optional: CIDRs allowed to set X-Forwarded-For and X-Real-IP
}

// LoadConfig reads the environment, after loading ENV_FILE (default .env)
// when it exists.
func LoadConfig() (Config, error) {
	envFile := getEnvOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		Issuer:           getEnvOrDefault("AUTH_ISSUER", "teamhub"),
		JWTSecret:        os.Getenv("AUTH_JWT_SECRET"),
		AccessTTL:        getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:       getEnvDurationOrDefault("AUTH_REFRESH_TTL", 7*24*time.Hour),
		RefreshRetention: getEnvDurationOrDefault("AUTH_REFRESH_RETENTION", 0),

		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "teamhub.db"),
		PepperFile:    getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		RefreshStore:  strings.ToLower(getEnvOrDefault("AUTH_REFRESH_STORE", RefreshStoreSQLite)),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		MFAIssuer: getEnvOrDefault("MFA_ISSUER", "TeamHub"),
		MFASkew:   getEnvIntOrDefault("MFA_SKEW", 1),

		OAuthGoogleClientID:     os.Getenv("OAUTH_GOOGLE_CLIENT_ID"),
		OAuthGoogleClientSecret: os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET"),
		OAuthGoogleRedirectURL:  getEnvOrDefault("OAUTH_GOOGLE_REDIRECT_URL", "http://localhost:8080/login/oauth2/code/google"),
		OAuthSuccessRedirect:    os.Getenv("OAUTH_SUCCESS_REDIRECT"),

		WSAllowedOrigins: getEnvListOrDefault("WS_ALLOWED_ORIGINS", nil),
		TrustedProxies:   getEnvListOrDefault("HTTP_TRUSTED_PROXIES", nil),
	}

	return cfg, cfg.Validate()
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	switch c.RefreshStore {
	case RefreshStoreSQLite:
	case RefreshStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when AUTH_REFRESH_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_REFRESH_STORE must be %q or %q, got %q", RefreshStoreSQLite, RefreshStoreRedis, c.RefreshStore))
	}
	if c.MFASkew < 0 {
		errs = append(errs, errors.New("MFA_SKEW must not be negative"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive"))
	}
	if _, err := httpx.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("HTTP_TRUSTED_PROXIES: %w", err))
	}

	return errors.Join(errs...)
}

// IsDev enables development-only routes.
func (c Config) IsDev() bool { return c.Env == "dev" }

// GoogleEnabled reports whether Google login is configured.
func (c Config) GoogleEnabled() bool {
	return c.OAuthGoogleClientID != "" && c.OAuthGoogleClientSecret != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
