package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/teamhub/pkg/slogx"
	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines a token bucket refilled at
// RequestsPerWindow/Window with capacity Burst.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Profiles, overridable with RATELIMIT_{STRICT,LENIENT,ACCOUNT}_{REQUESTS,WINDOW_SEC,BURST}.
var (
	// StrictLimit guards credential endpoints.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	// LenientLimit guards authenticated reads and OAuth redirects.
	LenientLimit = RateLimitConfig{RequestsPerWindow: 120, Window: time.Minute, Burst: 120}

	// AccountLimit caps password checks per account regardless of the
	// client address.
	AccountLimit = RateLimitConfig{RequestsPerWindow: 20, Window: 15 * time.Minute, Burst: 20}
)

func init() {
	StrictLimit = ParseRateLimitFromEnv("STRICT", StrictLimit)
	LenientLimit = ParseRateLimitFromEnv("LENIENT", LenientLimit)
	AccountLimit = ParseRateLimitFromEnv("ACCOUNT", AccountLimit)

	if err := SetTrustedProxies(nil); err != nil {
		panic(err)
	}
}

// ParseRateLimitFromEnv overlays RATELIMIT_{prefix}_* variables on def.
// Non-positive or unparsable values are ignored.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	if n := positiveEnvInt("RATELIMIT_" + prefix + "_REQUESTS"); n > 0 {
		cfg.RequestsPerWindow = n
	}
	if n := positiveEnvInt("RATELIMIT_" + prefix + "_WINDOW_SEC"); n > 0 {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n := positiveEnvInt("RATELIMIT_" + prefix + "_BURST"); n > 0 {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnvInt(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// KeyExtractor groups requests into rate limit buckets. An empty key
// bypasses limiting.
type KeyExtractor func(*http.Request) string

type clientIPExtractors struct {
	forwardedFor echo.IPExtractor
	realIP       echo.IPExtractor
}

var clientIP atomic.Pointer[clientIPExtractors]

// ParseTrustedProxies reads proxy entries given as CIDRs or single
// addresses. Blank entries are skipped.
func ParseTrustedProxies(proxies []string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q: invalid address", p)
			}
			bits := 128
			if v4 := ip.To4(); v4 != nil {
				ip, bits = v4, 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		out = append(out, ipNet)
	}
	return out, nil
}

// SetTrustedProxies lists the peers whose X-Forwarded-For and X-Real-IP
// headers are believed. With no entries both headers are ignored and the
// remote address is used.
func SetTrustedProxies(proxies []string) error {
	ranges, err := ParseTrustedProxies(proxies)
	if err != nil {
		return err
	}

	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range ranges {
		opts = append(opts, echo.TrustIPRange(r))
	}

	clientIP.Store(&clientIPExtractors{
		forwardedFor: echo.ExtractIPFromXFFHeader(opts...),
		realIP:       echo.ExtractIPFromRealIPHeader(opts...),
	})
	return nil
}

// IPKeyExtractor resolves the client address. Forwarding headers only
// count when the remote peer is a trusted proxy; X-Forwarded-For is then
// walked right to left up to the first untrusted hop.
func IPKeyExtractor(r *http.Request) string {
	ex := clientIP.Load()

	var ip string
	if r.Header.Get(echo.HeaderXForwardedFor) != "" {
		ip = ex.forwardedFor(r)
	} else {
		ip = ex.realIP(r)
	}
	if ip == "" {
		return r.RemoteAddr
	}
	return ip
}

// PrincipalKeyExtractor uses the authenticated user id.
func PrincipalKeyExtractor(r *http.Request) string {
	p, _ := PrincipalFrom(r.Context())
	return p.UserID
}

// JSONFieldKeyExtractor reads a top level string field from a JSON body,
// lower-cased. The body is restored for the handler.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]any
		if json.Unmarshal(body, &fields) != nil {
			return ""
		}
		v, _ := fields[field].(string)
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// rateLimiter keeps one limiter per key. Idle limiters expire once their
// bucket would have refilled, so eviction never grants extra requests.
type rateLimiter struct {
	limiters *ttlcache.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	perSecond := float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()
	refill := time.Duration(float64(cfg.Burst) / perSecond * float64(time.Second))

	return &rateLimiter{
		limiters:    ttlcache.New(ttlcache.WithTTL[string, *rate.Limiter](refill + cfg.Window)),
		rate:        rate.Limit(perSecond),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	if item := rl.limiters.Get(key); item != nil {
		return item.Value()
	}
	item, _ := rl.limiters.GetOrSet(key, rate.NewLimiter(rl.rate, rl.burst))
	rl.maybeCleanup()
	return item.Value()
}

func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()
	rl.limiters.DeleteExpired()
}

// RateLimitMiddleware answers 429 with Retry-After once a key exhausts its
// bucket.
func RateLimitMiddleware(cfg RateLimitConfig, keyFn KeyExtractor) Middleware {
	rl := newRateLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyFn(r)
			if key == "" {
				log.Debug("rate limit: no key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			limiter := rl.get(key)
			if !limiter.Allow() {
				res := limiter.Reserve()
				retryAfter := max(int(res.Delay().Seconds()), 1)
				res.Cancel()

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", cfg.Window.String())

				log.Warn("rate limit exceeded", "key", key, "retry_after", retryAfter)
				WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
					fmt.Sprintf("Too many requests. Retry in %d seconds.", retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits per client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByIPAndJSONField limits per client address and body field, for
// example login attempts per email.
func RateLimitByIPAndJSONField(cfg RateLimitConfig, field string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", IPKeyExtractor, JSONFieldKeyExtractor(field)))
}

// RateLimitByJSONField limits per body field alone, for example password
// checks per email from any number of addresses.
func RateLimitByJSONField(cfg RateLimitConfig, field string) Middleware {
	extract := JSONFieldKeyExtractor(field)
	return RateLimitMiddleware(cfg, func(r *http.Request) string {
		if v := extract(r); v != "" {
			return field + ":" + v
		}
		return ""
	})
}

// RateLimitByPrincipal limits per authenticated user, falling back to the
// client address.
func RateLimitByPrincipal(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, func(r *http.Request) string {
		if id := PrincipalKeyExtractor(r); id != "" {
			return "user:" + id
		}
		return "ip:" + IPKeyExtractor(r)
	})
}
