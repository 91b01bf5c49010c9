// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// Session is a server-side login. Only the sha256 of the bearer token is
// stored, so a leaked table cannot be replayed.
type Session struct {
	ID        int64     `db:"id"`
	TokenHash string    `db:"token_hash"`
	UserUID   int64     `db:"user_uid"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	IPAddress string    `db:"ip_address"`
	UserAgent string    `db:"user_agent"`
}

// IsExpired treats the expiry instant itself as already expired.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
