// AngelaMos | 2026
// errors.go

package core

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnavailable     = errors.New("service unavailable")
	ErrTokenInvalid    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")

	// ErrStaleWrite reports a lost compare-and-swap race. It never leaves
	// the store layer: callers retry the enclosing transaction.
	ErrStaleWrite = errors.New("stale write")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, statusCode int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func ValidationError(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest, "VALIDATION_ERROR")
}

// UnauthenticatedError is the single response for every missing, malformed,
// expired or revoked credential.
func UnauthenticatedError() *AppError {
	return NewAppError(
		ErrUnauthenticated,
		"authentication required",
		http.StatusUnauthorized,
		"UNAUTHENTICATED",
	)
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "insufficient permissions"
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "FORBIDDEN")
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound,
		"NOT_FOUND",
	)
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		ErrDuplicateKey,
		fmt.Sprintf("%s already exists", field),
		http.StatusConflict,
		"DUPLICATE",
	)
}

func ConflictError(code, message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict, code)
}

func AddressBannedError() *AppError {
	return NewAppError(
		ErrForbidden,
		"access from this address is blocked",
		http.StatusForbidden,
		"ADDRESS_BANNED",
	)
}

func AccountBannedError() *AppError {
	return NewAppError(
		ErrForbidden,
		"this account is banned",
		http.StatusForbidden,
		"ACCOUNT_BANNED",
	)
}

func InvalidCredentialsError() *AppError {
	return NewAppError(
		ErrUnauthenticated,
		"invalid email or password",
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
	)
}

func UnavailableError() *AppError {
	return NewAppError(
		ErrUnavailable,
		"service temporarily unavailable, retry shortly",
		http.StatusServiceUnavailable,
		"UNAVAILABLE",
	)
}

// IsTransient reports whether err is a store or network failure that is
// safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
