// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, session *Session) error
	FindByHash(ctx context.Context, tokenHash string) (*Session, error)
	DeleteByHash(ctx context.Context, tokenHash string) (int64, error)
	DeleteByUser(ctx context.Context, uid int64) (int64, error)
	ReassignUser(ctx context.Context, oldUID, newUID int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

const sessionColumns = `id, token_hash, user_uid, expires_at, created_at, ip_address, user_agent`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, session *Session) error {
	query := r.db.Rebind(`
		INSERT INTO sessions (
			token_hash, user_uid, expires_at, created_at, ip_address, user_agent
		) VALUES (
			?, ?, ?, ?, ?, ?
		)
		RETURNING id`)

	err := r.db.GetContext(ctx, &session.ID, query,
		session.TokenHash,
		session.UserUID,
		session.ExpiresAt,
		session.CreatedAt,
		session.IPAddress,
		session.UserAgent,
	)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("create session: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

func (r *repository) FindByHash(
	ctx context.Context,
	tokenHash string,
) (*Session, error) {
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = ?`)

	var session Session
	err := r.db.GetContext(ctx, &session, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find session: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	return &session, nil
}

func (r *repository) DeleteByHash(
	ctx context.Context,
	tokenHash string,
) (int64, error) {
	query := r.db.Rebind(`DELETE FROM sessions WHERE token_hash = ?`)
	return r.exec(ctx, "delete session", query, tokenHash)
}

func (r *repository) DeleteByUser(ctx context.Context, uid int64) (int64, error) {
	query := r.db.Rebind(`DELETE FROM sessions WHERE user_uid = ?`)
	return r.exec(ctx, "delete user sessions", query, uid)
}

func (r *repository) ReassignUser(
	ctx context.Context,
	oldUID, newUID int64,
) (int64, error) {
	query := r.db.Rebind(`UPDATE sessions SET user_uid = ? WHERE user_uid = ?`)
	return r.exec(ctx, "reassign sessions", query, newUID, oldUID)
}

func (r *repository) DeleteExpired(
	ctx context.Context,
	now time.Time,
) (int64, error) {
	query := r.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`)
	return r.exec(ctx, "delete expired sessions", query, now)
}

func (r *repository) exec(
	ctx context.Context,
	op string,
	query string,
	args ...any,
) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return rows, nil
}
