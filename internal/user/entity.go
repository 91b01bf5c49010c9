// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/entitlement"
)

type User struct {
	UID                 int64      `db:"uid"`
	Email               string     `db:"email"`
	DisplayName         string     `db:"display_name"`
	PasswordHash        string     `db:"password_hash"`
	DeviceToken         *string    `db:"device_token"`
	Role                string     `db:"role"`
	SubscriptionStatus  string     `db:"subscription_status"`
	SubscriptionExpires *time.Time `db:"subscription_expires"`
	EntitlementVersion  int64      `db:"entitlement_version"`
	IsBanned            bool       `db:"is_banned"`
	BanReason           *string    `db:"ban_reason"`
	LastIP              *string    `db:"last_ip"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

func (u *User) HasAccess(now time.Time) bool {
	return entitlement.IsActive(u.SubscriptionStatus, u.SubscriptionExpires, now)
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

func ValidRole(role string) bool {
	return role == RoleMember || role == RoleAdmin
}
