// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByUID(ctx context.Context, uid int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUID(ctx context.Context, uid int64) (bool, error)
	UpdatePassword(ctx context.Context, uid int64, passwordHash string, now time.Time) error
	UpdateLastIP(ctx context.Context, uid int64, ip string, now time.Time) error
	UpdateEntitlement(
		ctx context.Context,
		uid int64,
		status string,
		expires *time.Time,
		expectedVersion int64,
		now time.Time,
	) error
	SetBan(ctx context.Context, uid int64, banned bool, reason *string, now time.Time) error
	SetRole(ctx context.Context, uid int64, role string, now time.Time) error
	ChangeUID(ctx context.Context, oldUID, newUID int64, now time.Time) error
	Delete(ctx context.Context, uid int64) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
}

const userColumns = `uid, email, display_name, password_hash, device_token, role,
		subscription_status, subscription_expires, entitlement_version,
		is_banned, ban_reason, last_ip, created_at, updated_at`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Create assigns the next numeric uid. Two racing inserts can pick the same
// uid; the loser sees ErrDuplicateKey and the caller retries.
func (r *repository) Create(ctx context.Context, user *User) error {
	query := r.db.Rebind(`
		INSERT INTO users (
			uid, email, display_name, password_hash, device_token, role,
			subscription_status, entitlement_version, is_banned, last_ip,
			created_at, updated_at
		) VALUES (
			(SELECT COALESCE(MAX(uid), 0) + 1 FROM users),
			?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?
		)
		RETURNING uid`)

	err := r.db.GetContext(ctx, &user.UID, query,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.DeviceToken,
		user.Role,
		user.SubscriptionStatus,
		false,
		user.LastIP,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByUID(ctx context.Context, uid int64) (*User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE uid = ?`)

	var user User
	err := r.db.GetContext(ctx, &user, query, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`)
	if err := r.db.GetContext(ctx, &n, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return n > 0, nil
}

func (r *repository) ExistsByUID(ctx context.Context, uid int64) (bool, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM users WHERE uid = ?`)
	if err := r.db.GetContext(ctx, &n, query, uid); err != nil {
		return false, fmt.Errorf("check uid exists: %w", err)
	}
	return n > 0, nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	uid int64,
	passwordHash string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET password_hash = ?, updated_at = ?
		WHERE uid = ?`)

	return r.execOne(ctx, "update password", query, passwordHash, now, uid)
}

func (r *repository) UpdateLastIP(
	ctx context.Context,
	uid int64,
	ip string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET last_ip = ?, updated_at = ?
		WHERE uid = ?`)

	return r.execOne(ctx, "update last ip", query, ip, now, uid)
}

// UpdateEntitlement writes a new (status, expiry) pair only if the row still
// carries expectedVersion. A lost race yields core.ErrStaleWrite.
func (r *repository) UpdateEntitlement(
	ctx context.Context,
	uid int64,
	status string,
	expires *time.Time,
	expectedVersion int64,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET subscription_status = ?,
		    subscription_expires = ?,
		    entitlement_version = entitlement_version + 1,
		    updated_at = ?
		WHERE uid = ? AND entitlement_version = ?`)

	result, err := r.db.ExecContext(ctx, query, status, expires, now, uid, expectedVersion)
	if err != nil {
		return fmt.Errorf("update entitlement: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entitlement: %w", err)
	}

	if rows == 0 {
		exists, err := r.ExistsByUID(ctx, uid)
		if err != nil {
			return fmt.Errorf("update entitlement: %w", err)
		}
		if !exists {
			return fmt.Errorf("update entitlement: %w", core.ErrNotFound)
		}
		return fmt.Errorf("update entitlement: %w", core.ErrStaleWrite)
	}

	return nil
}

func (r *repository) SetBan(
	ctx context.Context,
	uid int64,
	banned bool,
	reason *string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET is_banned = ?, ban_reason = ?, updated_at = ?
		WHERE uid = ?`)

	return r.execOne(ctx, "set ban", query, banned, reason, now, uid)
}

func (r *repository) SetRole(
	ctx context.Context,
	uid int64,
	role string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET role = ?, updated_at = ?
		WHERE uid = ?`)

	return r.execOne(ctx, "set role", query, role, now, uid)
}

// ChangeUID relabels the identity row only. References held by other
// tables are rewritten by the caller inside the same transaction.
func (r *repository) ChangeUID(
	ctx context.Context,
	oldUID, newUID int64,
	now time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET uid = ?, updated_at = ?
		WHERE uid = ?`)

	result, err := r.db.ExecContext(ctx, query, newUID, now, oldUID)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("change uid: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("change uid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("change uid: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("change uid: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, uid int64) error {
	query := r.db.Rebind(`DELETE FROM users WHERE uid = ?`)
	return r.execOne(ctx, "delete user", query, uid)
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	where := "1 = 1"
	var args []any

	if q := strings.TrimSpace(params.Query); q != "" {
		pattern := "%" + core.EscapeLike(strings.ToLower(q)) + "%"
		match := `LOWER(email) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)

		if uid, err := strconv.ParseInt(q, 10, 64); err == nil {
			match = "uid = ? OR " + match
			args = append([]any{uid}, args...)
		}

		where = "(" + match + ")"
	}

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM users WHERE " + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC, uid DESC
		LIMIT ? OFFSET ?`, userColumns, where))

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op string,
	query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}
