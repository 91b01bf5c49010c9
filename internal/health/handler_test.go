// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("connection refused") }

func readiness(t *testing.T, h *Handler) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var resp ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, resp
}

func TestReadinessAllHealthy(t *testing.T) {
	h := NewHandler(
		Dependency{Name: "database", Checker: CheckerFunc(ok)},
		Dependency{Name: "redis"},
	)

	code, resp := readiness(t, h)
	if code != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("readiness = %d %q", code, resp.Status)
	}
	if len(resp.Checks) != 2 || resp.Checks[1].Message != "not configured" {
		t.Errorf("checks = %+v", resp.Checks)
	}
}

func TestReadinessDegraded(t *testing.T) {
	h := NewHandler(
		Dependency{Name: "database", Checker: CheckerFunc(ok)},
		Dependency{Name: "redis", Checker: CheckerFunc(failing)},
	)

	code, resp := readiness(t, h)
	if code != http.StatusServiceUnavailable || resp.Status != "degraded" {
		t.Fatalf("readiness = %d %q", code, resp.Status)
	}
	if resp.Checks[1].Healthy || resp.Checks[1].Name != "redis" {
		t.Errorf("redis check = %+v", resp.Checks[1])
	}
}

func TestShutdownFailsProbes(t *testing.T) {
	h := NewHandler(Dependency{Name: "database", Checker: CheckerFunc(ok)})
	h.SetShutdown(true)

	for _, probe := range []http.HandlerFunc{h.Liveness, h.Readiness} {
		rec := httptest.NewRecorder()
		probe(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	}
}

func TestIsProbe(t *testing.T) {
	for path, want := range map[string]bool{
		"/healthz":       true,
		"/readyz":        true,
		"/livez":         true,
		"/v1/healthz":    false,
		"/v1/auth/login": false,
	} {
		if IsProbe(path) != want {
			t.Errorf("IsProbe(%q) = %v", path, !want)
		}
	}
}
