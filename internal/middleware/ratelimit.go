// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/config"
	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/ratelimit"
)

// RouteClass groups the paths under Prefix behind one ceiling.
type RouteClass struct {
	Name   string
	Prefix string
	Limit  ratelimit.Limit
}

type RateLimitConfig struct {
	Classes    []RouteClass
	Default    RouteClass
	FailOpen   bool
	BypassFunc func(*http.Request) bool
}

// RateLimitConfigFrom builds the route classes the API exposes: login and
// registration, payment confirmation, key redemption, and everything else.
func RateLimitConfigFrom(cfg config.RateLimitConfig) RateLimitConfig {
	limit := func(n int) ratelimit.Limit {
		return ratelimit.Limit{Max: n, Window: cfg.Window}
	}

	return RateLimitConfig{
		Classes: []RouteClass{
			{Name: "auth", Prefix: "/v1/auth", Limit: limit(cfg.Auth)},
			{Name: "payment", Prefix: "/v1/payment", Limit: limit(cfg.Payment)},
			{Name: "keys", Prefix: "/v1/keys", Limit: limit(cfg.Keys)},
		},
		Default:  RouteClass{Name: "default", Limit: limit(cfg.Default)},
		FailOpen: true,
	}
}

type RateLimiter struct {
	limiter ratelimit.Limiter
	config  RateLimitConfig
}

func NewRateLimiter(limiter ratelimit.Limiter, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		config:  cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		class := rl.classify(r.URL.Path)
		key := KeyByClassAndIP(r, class.Name)

		d, err := rl.limiter.Allow(r.Context(), key, class.Limit)
		if err != nil {
			if rl.config.FailOpen {
				slog.Warn("rate limiter error, failing open",
					"error", err,
					"key", key,
				)
				next.ServeHTTP(w, r)
				return
			}
			slog.Error("rate limiter error, failing closed",
				"error", err,
				"key", key,
			)
			core.JSONError(w, core.UnavailableError())
			return
		}

		setRateLimitHeaders(w, d, class.Limit)

		if !d.Allowed {
			writeRateLimitExceeded(w, d)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) classify(path string) RouteClass {
	for _, c := range rl.config.Classes {
		if path == c.Prefix || strings.HasPrefix(path, c.Prefix+"/") {
			return c
		}
	}
	return rl.config.Default
}

func KeyByClassAndIP(r *http.Request, class string) string {
	ip := GetClientIP(r.Context())
	if ip == "" {
		ip = remoteHost(r.RemoteAddr)
	}
	return class + ":" + ip
}

func setRateLimitHeaders(
	w http.ResponseWriter,
	d ratelimit.Decision,
	limit ratelimit.Limit,
) {
	h := w.Header()

	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Max))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(d.ResetAfter).Unix(), 10))

	windowSecs := int(limit.Window.Seconds())
	h.Set("RateLimit-Policy", fmt.Sprintf(`%d;w=%d`, limit.Max, windowSecs))
	h.Set(
		"RateLimit",
		fmt.Sprintf(`%d;t=%d`, d.Remaining, int(d.ResetAfter.Seconds())),
	)
}

func writeRateLimitExceeded(w http.ResponseWriter, d ratelimit.Decision) {
	retryAfter := int((d.RetryAfter + time.Second - 1) / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    "RATE_LIMITED",
			"message": "too many requests, slow down",
		},
	}

	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(response)
}
