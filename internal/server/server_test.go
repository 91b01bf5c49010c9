// AngelaMos | 2026
// server_test.go

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/admin"
	"github.com/carterperez-dev/skyline-backend/internal/auth"
	"github.com/carterperez-dev/skyline-backend/internal/config"
	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/entitlement"
	"github.com/carterperez-dev/skyline-backend/internal/health"
	"github.com/carterperez-dev/skyline-backend/internal/ipban"
	"github.com/carterperez-dev/skyline-backend/internal/license"
	"github.com/carterperez-dev/skyline-backend/internal/middleware"
	"github.com/carterperez-dev/skyline-backend/internal/payment"
	"github.com/carterperez-dev/skyline-backend/internal/ratelimit"
	"github.com/carterperez-dev/skyline-backend/internal/testutil"
	"github.com/carterperez-dev/skyline-backend/internal/user"
)

const testPassword = "correct horse battery"

type testEnv struct {
	server *Server
	health *health.Handler
	users  *user.Service
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *core.ErrorBody `json:"error"`
}

func newTestEnv(t *testing.T, authLimit int) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := user.NewService(db.DB, user.NewRepository(db.DB))
	bans := ipban.NewService(ipban.NewRepository(db.DB))
	sessions := auth.NewService(auth.NewRepository(db.DB), users, bans, auth.ServiceConfig{})
	keys := license.NewService(db.DB, license.NewRepository(db.DB), license.Config{})
	plans := entitlement.NewPlans(map[string]int{"1_month": 30}, "1_month")
	orders := payment.NewService(db.DB, payment.NewRepository(db.DB), plans, nil)

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	memory := ratelimit.NewMemoryLimiter(ratelimit.WithClock(func() time.Time { return now }))
	t.Cleanup(memory.Close)

	rlCfg := middleware.RateLimitConfigFrom(config.RateLimitConfig{
		Window:  time.Minute,
		Auth:    authLimit,
		Payment: 100,
		Keys:    100,
		Default: 100,
	})
	rlCfg.BypassFunc = func(r *http.Request) bool { return health.IsProbe(r.URL.Path) }

	healthHandler := health.NewHandler(health.Dependency{Name: "database", Checker: db})

	srv := New(Config{
		ServerConfig:  config.ServerConfig{Host: "127.0.0.1", Port: 0},
		CORS:          config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		HealthHandler: healthHandler,
		Logger:        logger,
	})
	srv.Mount(API{
		Auth:    auth.NewHandler(sessions),
		Users:   user.NewHandler(users),
		Keys:    license.NewHandler(keys),
		Payment: payment.NewHandler(orders),
		Admin: admin.NewHandler(admin.HandlerConfig{
			Service:  admin.NewService(db.DB, users, bans, keys),
			Sessions: sessions,
			Stats:    admin.Stats{DBStats: db.Stats, DBPing: db.Ping},
		}),
		Sessions: sessions,
		Bans:     bans,
		Limiter:  middleware.NewRateLimiter(memory, rlCfg),
	})

	return &testEnv{server: srv, health: healthHandler, users: users}
}

func (e *testEnv) do(
	t *testing.T,
	method, path, token, remote string,
	body any,
) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if remote != "" {
		req.RemoteAddr = remote
	}

	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return rec.Code, env
}

func (e *testEnv) register(t *testing.T, email string) (int64, string) {
	t.Helper()

	status, env := e.do(t, http.MethodPost, "/v1/auth/register", "", "", auth.RegisterRequest{
		Email:       email,
		Password:    testPassword,
		DisplayName: "tester",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d, error %+v", email, status, env.Error)
	}

	var resp auth.AuthResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp.User.UID, resp.Session.Token
}

func TestKeyLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t, 100)

	adminUID, adminToken := e.register(t, "root@example.com")
	_, memberToken := e.register(t, "member@example.com")

	status, _ := e.do(t, http.MethodGet, "/v1/users/me", memberToken, "", nil)
	if status != http.StatusOK {
		t.Fatalf("GET /me status = %d", status)
	}

	gen := map[string]int{"duration_days": 30, "count": 2}
	if status, _ := e.do(t, http.MethodPost, "/v1/admin/keys/generate", memberToken, "", gen); status != http.StatusForbidden {
		t.Fatalf("member generated keys: status %d", status)
	}

	if err := e.users.SetRole(context.Background(), adminUID, user.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	status, env := e.do(t, http.MethodPost, "/v1/admin/keys/generate", adminToken, "", gen)
	if status != http.StatusCreated {
		t.Fatalf("generate status = %d, error %+v", status, env.Error)
	}
	var keys admin.GenerateKeysResponse
	if err := json.Unmarshal(env.Data, &keys); err != nil || len(keys.Codes) != 2 {
		t.Fatalf("generated = %+v, %v", keys, err)
	}

	redeem := license.RedeemRequest{Code: keys.Codes[0]}
	status, env = e.do(t, http.MethodPost, "/v1/keys/redeem", memberToken, "", redeem)
	if status != http.StatusOK {
		t.Fatalf("redeem status = %d, error %+v", status, env.Error)
	}
	var redeemed license.RedeemResponse
	if err := json.Unmarshal(env.Data, &redeemed); err != nil || redeemed.SubscriptionExpires == nil {
		t.Fatalf("redeem response = %+v, %v", redeemed, err)
	}

	status, env = e.do(t, http.MethodPost, "/v1/keys/redeem", adminToken, "", redeem)
	if status != http.StatusConflict || env.Error == nil || env.Error.Code != "ALREADY_USED" {
		t.Fatalf("second redeem = %d %+v, want 409 ALREADY_USED", status, env.Error)
	}

	if status, _ := e.do(t, http.MethodPost, "/v1/keys/redeem", "", "", redeem); status != http.StatusUnauthorized {
		t.Errorf("anonymous redeem status = %d", status)
	}
}

func TestAdminStatsWithoutRedis(t *testing.T) {
	e := newTestEnv(t, 100)

	uid, token := e.register(t, "ops@example.com")
	if status, _ := e.do(t, http.MethodGet, "/v1/admin/stats", token, "", nil); status != http.StatusForbidden {
		t.Fatalf("member stats status = %d, want 403", status)
	}
	if err := e.users.SetRole(context.Background(), uid, user.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	status, env := e.do(t, http.MethodGet, "/v1/admin/stats", token, "", nil)
	if status != http.StatusOK {
		t.Fatalf("stats status = %d, error %+v", status, env.Error)
	}
	var stats admin.SystemStatsResponse
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if !stats.Database.Healthy || stats.Database.Stats == nil {
		t.Errorf("database = %+v, want healthy with pool stats", stats.Database)
	}
	if stats.Redis != nil {
		t.Errorf("redis = %+v, want omitted without a client", stats.Redis)
	}
	if stats.Runtime.GoVersion == "" || stats.Runtime.NumGoroutine == 0 {
		t.Errorf("runtime = %+v", stats.Runtime)
	}

	status, env = e.do(t, http.MethodGet, "/v1/admin/stats/redis", token, "", nil)
	if status != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("redis stats = %d %+v, want 404 NOT_FOUND", status, env.Error)
	}

	if status, _ := e.do(t, http.MethodGet, "/v1/admin/stats/db", token, "", nil); status != http.StatusOK {
		t.Errorf("db stats status = %d", status)
	}
}

func TestAddressBanBlocksAPIButNotProbes(t *testing.T) {
	e := newTestEnv(t, 100)

	adminUID, adminToken := e.register(t, "root@example.com")
	if err := e.users.SetRole(context.Background(), adminUID, user.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	ban := admin.AddressBanRequest{IP: "203.0.113.50", Reason: "abuse"}
	if status, env := e.do(t, http.MethodPost, "/v1/admin/ip-bans", adminToken, "", ban); status != http.StatusCreated {
		t.Fatalf("ban status = %d, error %+v", status, env.Error)
	}

	const banned = "203.0.113.50:4000"
	status, env := e.do(t, http.MethodPost, "/v1/auth/login", "", banned, auth.LoginRequest{
		Email:    "root@example.com",
		Password: testPassword,
	})
	if status != http.StatusForbidden || env.Error == nil || env.Error.Code != "ADDRESS_BANNED" {
		t.Fatalf("banned login = %d %+v", status, env.Error)
	}

	if status, _ := e.do(t, http.MethodGet, "/healthz", "", banned, nil); status != http.StatusOK {
		t.Errorf("probe from banned address = %d", status)
	}

	if status, _ := e.do(t, http.MethodDelete, "/v1/admin/ip-bans?ip=203.0.113.50", adminToken, "", nil); status != http.StatusNoContent {
		t.Fatalf("unban status = %d", status)
	}
	if status, _ := e.do(t, http.MethodPost, "/v1/auth/login", "", banned, auth.LoginRequest{
		Email:    "root@example.com",
		Password: testPassword,
	}); status != http.StatusOK {
		t.Errorf("login after unban = %d", status)
	}
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	e := newTestEnv(t, 3)

	login := auth.LoginRequest{Email: "nobody@example.com", Password: "whatever"}
	for i := range 3 {
		if status, _ := e.do(t, http.MethodPost, "/v1/auth/login", "", "", login); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, status)
		}
	}

	status, env := e.do(t, http.MethodPost, "/v1/auth/login", "", "", login)
	if status != http.StatusTooManyRequests || env.Error == nil || env.Error.Code != "RATE_LIMITED" {
		t.Fatalf("fourth attempt = %d %+v", status, env.Error)
	}

	for range 5 {
		if status, _ := e.do(t, http.MethodGet, "/readyz", "", "", nil); status != http.StatusOK {
			t.Fatalf("readiness probe throttled: %d", status)
		}
	}
}

func TestShutdownFailsProbes(t *testing.T) {
	e := newTestEnv(t, 100)

	if err := e.server.Shutdown(context.Background(), 0); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		if status, _ := e.do(t, http.MethodGet, path, "", "", nil); status != http.StatusServiceUnavailable {
			t.Errorf("%s after shutdown = %d", path, status)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := newTestEnv(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}
