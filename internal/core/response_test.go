// AngelaMos | 2026
// response_test.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "app error passes through", err: ConflictError("ALREADY_USED", "used"), wantStatus: http.StatusConflict, wantCode: "ALREADY_USED"},
		{name: "wrapped app error", err: fmt.Errorf("redeem: %w", AccountBannedError()), wantStatus: http.StatusForbidden, wantCode: "ACCOUNT_BANNED"},
		{name: "not found", err: ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "invalid input", err: fmt.Errorf("days: %w", ErrInvalidInput), wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "duplicate", err: ErrDuplicateKey, wantStatus: http.StatusConflict, wantCode: "DUPLICATE"},
		{name: "conflict", err: ErrConflict, wantStatus: http.StatusConflict, wantCode: "CONFLICT"},
		{name: "unauthenticated", err: ErrUnauthenticated, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHENTICATED"},
		{name: "forbidden", err: fmt.Errorf("set role: %w", ErrForbidden), wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "transient", err: fmt.Errorf("query: %w", ErrUnavailable), wantStatus: http.StatusServiceUnavailable, wantCode: "UNAVAILABLE"},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleServiceError(rec, tt.err, "user")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body Response
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success || body.Error == nil {
				t.Fatalf("body = %+v, want an error envelope", body)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestInternalServerErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalServerError(rec, errors.New("pq: password authentication failed"))

	var body Response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Message != "internal server error" {
		t.Fatalf("error body = %+v", body.Error)
	}
}
