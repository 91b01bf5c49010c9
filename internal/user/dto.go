// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type UserResponse struct {
	UID                 int64      `json:"uid"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"display_name"`
	DeviceToken         *string    `json:"device_token"`
	Role                string     `json:"role"`
	SubscriptionStatus  string     `json:"subscription_status"`
	SubscriptionExpires *time.Time `json:"subscription_expires"`
	HasAccess           bool       `json:"has_access"`
	CreatedAt           time.Time  `json:"created_at"`
}

// AdminUserResponse adds the moderation fields only admins may see.
type AdminUserResponse struct {
	UserResponse
	IsBanned  bool    `json:"is_banned"`
	BanReason *string `json:"ban_reason"`
	LastIP    *string `json:"last_ip"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Query    string `json:"query"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 50
	}
	if p.PageSize > 200 {
		p.PageSize = 200
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User, now time.Time) UserResponse {
	return UserResponse{
		UID:                 u.UID,
		Email:               u.Email,
		DisplayName:         u.DisplayName,
		DeviceToken:         u.DeviceToken,
		Role:                u.Role,
		SubscriptionStatus:  u.SubscriptionStatus,
		SubscriptionExpires: u.SubscriptionExpires,
		HasAccess:           u.HasAccess(now),
		CreatedAt:           u.CreatedAt,
	}
}

func ToAdminUserResponse(u *User, now time.Time) AdminUserResponse {
	return AdminUserResponse{
		UserResponse: ToUserResponse(u, now),
		IsBanned:     u.IsBanned,
		BanReason:    u.BanReason,
		LastIP:       u.LastIP,
	}
}

func ToAdminUserResponseList(users []User, now time.Time) []AdminUserResponse {
	responses := make([]AdminUserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToAdminUserResponse(&users[i], now))
	}
	return responses
}
