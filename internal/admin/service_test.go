// AngelaMos | 2026
// service_test.go

package admin

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/carterperez-dev/skyline-backend/internal/auth"
	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/entitlement"
	"github.com/carterperez-dev/skyline-backend/internal/ipban"
	"github.com/carterperez-dev/skyline-backend/internal/license"
	"github.com/carterperez-dev/skyline-backend/internal/payment"
	"github.com/carterperez-dev/skyline-backend/internal/testutil"
	"github.com/carterperez-dev/skyline-backend/internal/user"
)

type fixture struct {
	admin    *Service
	users    *user.Service
	sessions *auth.Service
	keys     *license.Service
	orders   *payment.Service
	db       *core.Database
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	users := user.NewService(db.DB, user.NewRepository(db.DB))
	bans := ipban.NewService(ipban.NewRepository(db.DB))
	keys := license.NewService(db.DB, license.NewRepository(db.DB), license.Config{})
	plans := entitlement.NewPlans(map[string]int{"1_month": 30}, "1_month")

	return &fixture{
		admin:    NewService(db.DB, users, bans, keys),
		users:    users,
		sessions: auth.NewService(auth.NewRepository(db.DB), users, bans, auth.ServiceConfig{}),
		keys:     keys,
		orders:   payment.NewService(db.DB, payment.NewRepository(db.DB), plans, nil),
		db:       db,
	}
}

// createUsers registers n identities with uids 1..n.
func (f *fixture) createUsers(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := f.users.Create(context.Background(), auth.NewUser{
			Email:        fmt.Sprintf("user%d@example.com", i),
			DisplayName:  fmt.Sprintf("user %d", i),
			PasswordHash: "hash",
		})
		if err != nil {
			t.Fatalf("create user %d: %v", i, err)
		}
	}
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := f.db.DB.Get(&n, f.db.DB.Rebind(query), args...); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func TestRevokeClearsEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUsers(t, 1)

	state, err := f.admin.GrantOrRevoke(ctx, 1, 30)
	if err != nil || state.Status != entitlement.StatusActive {
		t.Fatalf("grant = %+v, %v", state, err)
	}

	state, err = f.admin.GrantOrRevoke(ctx, 1, entitlement.RevokeDays)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if state.Status != entitlement.StatusInactive || state.Expires != nil {
		t.Fatalf("revoked state = %+v", state)
	}

	u, err := f.users.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.SubscriptionStatus != entitlement.StatusInactive || u.SubscriptionExpires != nil {
		t.Errorf("stored = %s/%v", u.SubscriptionStatus, u.SubscriptionExpires)
	}
}

func TestChangeIdentityIDRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUsers(t, 7)

	tests := []struct {
		name    string
		oldUID  int64
		newUID  int64
		wantErr error
		code    string
	}{
		{name: "same uid", oldUID: 5, newUID: 5, wantErr: core.ErrInvalidInput},
		{name: "non-positive", oldUID: 5, newUID: 0, wantErr: core.ErrInvalidInput},
		{name: "taken", oldUID: 5, newUID: 7, wantErr: core.ErrConflict, code: "UID_TAKEN"},
		{name: "missing", oldUID: 40, newUID: 41, wantErr: core.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.admin.ChangeIdentityID(ctx, tt.oldUID, tt.newUID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.code != "" {
				var appErr *core.AppError
				if !errors.As(err, &appErr) || appErr.Code != tt.code {
					t.Fatalf("code = %v, want %s", err, tt.code)
				}
			}
		})
	}

	if f.count(t, "SELECT COUNT(*) FROM users") != 7 {
		t.Error("a rejected change modified the users table")
	}
}

func TestChangeIdentityIDRewritesReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUsers(t, 2)

	token, _, err := f.sessions.CreateSession(ctx, 2, "10.0.0.2", "test")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	codes, err := f.keys.GenerateBatch(ctx, 30, 1)
	if err != nil {
		t.Fatalf("GenerateBatch: %v", err)
	}
	if _, err := f.keys.Redeem(ctx, 2, codes[0]); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if _, err := f.orders.Confirm(ctx, 2, "order-1", ""); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if err := f.admin.ChangeIdentityID(ctx, 2, 900); err != nil {
		t.Fatalf("ChangeIdentityID: %v", err)
	}

	p, err := f.sessions.ResolveSession(ctx, token)
	if err != nil {
		t.Fatalf("session lost after uid change: %v", err)
	}
	if p.UID != 900 {
		t.Errorf("session resolves to uid %d, want 900", p.UID)
	}

	if n := f.count(t, "SELECT COUNT(*) FROM license_keys WHERE redeemed_by = ?", 900); n != 1 {
		t.Errorf("redeemed keys moved = %d, want 1", n)
	}
	if n := f.count(t, "SELECT COUNT(*) FROM payment_orders WHERE user_uid = ?", 900); n != 1 {
		t.Errorf("orders moved = %d, want 1", n)
	}
	if n := f.count(t, "SELECT COUNT(*) FROM users WHERE uid = ?", 2); n != 0 {
		t.Errorf("old uid still present")
	}
}

func TestDeleteRemovesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUsers(t, 1)

	token, _, err := f.sessions.CreateSession(ctx, 1, "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := f.admin.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := f.sessions.ResolveSession(ctx, token); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("session of deleted identity err = %v", err)
	}
	if n := f.count(t, "SELECT COUNT(*) FROM sessions"); n != 0 {
		t.Errorf("%d sessions left", n)
	}

	if err := f.admin.Delete(ctx, 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestBanAndUnbanIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUsers(t, 1)

	if err := f.admin.Ban(ctx, 1, "chargeback"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if err := f.admin.Unban(ctx, 1); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if err := f.admin.Ban(ctx, 99, ""); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("ban missing err = %v, want ErrNotFound", err)
	}

	u, err := f.users.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.IsBanned || u.BanReason != nil {
		t.Errorf("after unban = %v/%v", u.IsBanned, u.BanReason)
	}
}
