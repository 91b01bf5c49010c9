// AngelaMos | 2026
// ipban.go

package middleware

import (
	"context"
	"net/http"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

type IPBanChecker interface {
	IsBanned(ctx context.Context, ip string) (bool, error)
}

// BlockBannedAddresses refuses every request from a banned client address.
// It reads the address stored by ClientIP.
func BlockBannedAddresses(bans IPBanChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rejectBannedAddress(w, r, bans) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rejectBannedAddress writes the refusal and reports true when the request
// must stop here.
func rejectBannedAddress(w http.ResponseWriter, r *http.Request, bans IPBanChecker) bool {
	if bans == nil {
		return false
	}

	banned, err := bans.IsBanned(r.Context(), GetClientIP(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return true
	}
	if banned {
		core.JSONError(w, core.AddressBannedError())
		return true
	}

	return false
}
