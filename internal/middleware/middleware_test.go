// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/ratelimit"
)

type fakeResolver map[string]*Principal

func (f fakeResolver) ResolveSession(_ context.Context, token string) (*Principal, error) {
	if token == "BROKEN" {
		return nil, errors.New("store exploded")
	}
	p, ok := f[token]
	if !ok {
		return nil, core.ErrUnauthenticated
	}
	return p, nil
}

type fakeBans map[string]bool

func (f fakeBans) IsBanned(_ context.Context, ip string) (bool, error) {
	return f[ip], nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorBody {
	t.Helper()
	var resp core.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error == nil {
		t.Fatalf("response has no error body: %+v", resp)
	}
	return *resp.Error
}

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticator(t *testing.T) {
	resolver := fakeResolver{
		"GOOD": {UID: 42, Email: "a@example.com", Role: "member"},
	}

	var seen *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipal(r.Context())
		if GetUserUID(r.Context()) != 42 {
			t.Errorf("uid in context = %d", GetUserUID(r.Context()))
		}
		w.WriteHeader(http.StatusOK)
	})
	h := Authenticator(resolver)(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic GOOD", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer NOPE", status: http.StatusUnauthorized},
		{name: "store failure", header: "Bearer BROKEN", status: http.StatusInternalServerError},
		{name: "valid", header: "bearer GOOD", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusUnauthorized {
				if body := decodeError(t, rec); body.Code != "UNAUTHENTICATED" {
					t.Errorf("code = %q, want UNAUTHENTICATED", body.Code)
				}
			}
		})
	}

	if seen == nil || seen.UID != 42 {
		t.Errorf("principal = %+v", seen)
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		status    int
	}{
		{name: "anonymous", principal: nil, status: http.StatusUnauthorized},
		{name: "member", principal: &Principal{UID: 1, Role: "member"}, status: http.StatusForbidden},
		{name: "admin", principal: &Principal{UID: 9, Role: "admin"}, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			h := RequireAdmin(okHandler(&calls))

			req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if (tt.status == http.StatusOK) != (calls == 1) {
				t.Errorf("downstream calls = %d", calls)
			}
		})
	}
}

func TestBlockBannedAddresses(t *testing.T) {
	var calls int
	h := ClientIP(BlockBannedAddresses(fakeBans{"203.0.113.9": true})(okHandler(&calls)))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "[::ffff:203.0.113.9]:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "ADDRESS_BANNED" {
		t.Errorf("code = %q", body.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "203.0.113.10:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || calls != 1 {
		t.Fatalf("clean address status = %d, calls = %d", rec.Code, calls)
	}
}

func TestClientIPCanonicalizes(t *testing.T) {
	var got string
	h := ClientIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::ffff:10.0.0.1]:4321"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "10.0.0.1" {
		t.Fatalf("client ip = %q, want 10.0.0.1", got)
	}
}

func TestRequestIDKeepsCallerValue(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-me")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "trace-me" || rec.Header().Get(RequestIDHeader) != "trace-me" {
		t.Fatalf("request id = %q / %q", got, rec.Header().Get(RequestIDHeader))
	}

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got == "" || got == "trace-me" {
		t.Fatalf("generated request id = %q", got)
	}
}

type rateLimitFixture struct {
	handler http.Handler
	mu      sync.Mutex
	calls   int
}

func newRateLimitFixture(t *testing.T) *rateLimitFixture {
	t.Helper()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemoryLimiter(
		ratelimit.WithClock(func() time.Time { return now }),
	)
	t.Cleanup(limiter.Close)

	f := &rateLimitFixture{}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.calls++
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	window := time.Minute
	rl := NewRateLimiter(limiter, RateLimitConfig{
		Classes: []RouteClass{
			{Name: "auth", Prefix: "/v1/auth", Limit: ratelimit.Limit{Max: 2, Window: window}},
		},
		Default:  RouteClass{Name: "default", Limit: ratelimit.Limit{Max: 5, Window: window}},
		FailOpen: true,
		BypassFunc: func(r *http.Request) bool {
			return r.URL.Path == "/healthz"
		},
	})

	f.handler = ClientIP(rl.Handler(next))
	return f
}

func (f *rateLimitFixture) do(path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterRejectsBeforeHandler(t *testing.T) {
	f := newRateLimitFixture(t)
	const client = "198.51.100.1:1000"

	for i := range 2 {
		rec := f.do("/v1/auth/login", client)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec := f.do("/v1/auth/register", client)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third auth request status = %d, want 429", rec.Code)
	}
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retry < 1 || retry > 60 {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if body := decodeError(t, rec); body.Code != "RATE_LIMITED" {
		t.Errorf("code = %q", body.Code)
	}
	if f.calls != 2 {
		t.Fatalf("downstream ran %d times, want 2", f.calls)
	}

	if rec := f.do("/v1/users/me", client); rec.Code != http.StatusOK {
		t.Errorf("default class shares the auth bucket: %d", rec.Code)
	}
	if rec := f.do("/v1/auth/login", "198.51.100.2:1000"); rec.Code != http.StatusOK {
		t.Errorf("other client throttled: %d", rec.Code)
	}
	if rec := f.do("/v1/authx", client); rec.Code != http.StatusOK {
		t.Errorf("prefix match leaked into /v1/authx: %d", rec.Code)
	}
}

func TestRateLimiterBypass(t *testing.T) {
	f := newRateLimitFixture(t)

	for range 10 {
		if rec := f.do("/healthz", "198.51.100.1:1000"); rec.Code != http.StatusOK {
			t.Fatalf("health probe throttled: %d", rec.Code)
		}
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, ratelimit.Limit) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimiterFailMode(t *testing.T) {
	for _, failOpen := range []bool{true, false} {
		var calls int
		rl := NewRateLimiter(brokenLimiter{}, RateLimitConfig{
			Default:  RouteClass{Name: "default", Limit: ratelimit.PerMinute(1)},
			FailOpen: failOpen,
		})

		rec := httptest.NewRecorder()
		rl.Handler(okHandler(&calls)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		want := http.StatusServiceUnavailable
		if failOpen {
			want = http.StatusOK
		}
		if rec.Code != want {
			t.Errorf("failOpen=%v status = %d, want %d", failOpen, rec.Code, want)
		}
		if failOpen {
			continue
		}
		if calls != 0 {
			t.Errorf("handler ran %d times while failing closed", calls)
		}
		if got := decodeError(t, rec).Code; got != "UNAVAILABLE" {
			t.Errorf("fail-closed code = %q, want UNAVAILABLE", got)
		}
	}
}
