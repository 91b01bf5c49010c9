// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

const (
	PrincipalKey contextKey = "principal"
	UserUIDKey   contextKey = "user_uid"
	UserRoleKey  contextKey = "user_role"
)

const roleAdmin = "admin"

// Principal is the identity a resolved session belongs to.
type Principal struct {
	UID   int64
	Email string
	Role  string
}

type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*Principal, error)
}

// Authenticator gates a route on a live session. Address bans are enforced
// earlier by BlockBannedAddresses.
func Authenticator(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				core.JSONError(w, core.UnauthenticatedError())
				return
			}

			principal, err := resolver.ResolveSession(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, PrincipalKey, p)
	ctx = context.WithValue(ctx, UserUIDKey, p.UID)
	ctx = context.WithValue(ctx, UserRoleKey, p.Role)
	return ctx
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetUserRole(r.Context())

			if userRole == "" {
				core.JSONError(w, core.UnauthenticatedError())
				return
			}

			if _, ok := roleSet[userRole]; !ok {
				core.JSONError(
					w,
					core.ForbiddenError("insufficient permissions"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(roleAdmin)(next)
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// handleAuthError never tells the caller why a token was refused. Store
// failures still surface as 503 so clients know to retry.
func handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthenticated),
		errors.Is(err, core.ErrTokenInvalid),
		errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.UnauthenticatedError())
	default:
		core.InternalServerError(w, err)
	}
}

func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func GetUserUID(ctx context.Context) int64 {
	if uid, ok := ctx.Value(UserUIDKey).(int64); ok {
		return uid
	}
	return 0
}

func GetUserRole(ctx context.Context) string {
	if role, ok := ctx.Value(UserRoleKey).(string); ok {
		return role
	}
	return ""
}

func IsAdmin(ctx context.Context) bool {
	return GetUserRole(ctx) == roleAdmin
}
