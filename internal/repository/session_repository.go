package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/VaradSinghal/EchoV3/internal/model"
)

// SessionRepo persists refresh-token sessions (hash column only; the raw
// token never touches the database).
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts an active session row for a freshly issued refresh token
// and returns its id.
func (r *SessionRepo) Create(ctx context.Context, userID, tokenHash string, exp time.Time) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, refresh_token_hash, is_active, expires_at, last_active_at) VALUES (?,?,?,1,?,NOW())",
		id, userID, tokenHash, exp)
	return id, err
}

// GetActiveByTokenHash returns the active, unexpired session matching a
// refresh token hash.  Revoked or expired sessions yield ErrNotFound.
func (r *SessionRepo) GetActiveByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,refresh_token_hash,is_active,expires_at,created_at,last_active_at FROM sessions WHERE refresh_token_hash=? LIMIT 1",
		tokenHash).Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.IsActive, &s.ExpiresAt, &s.CreatedAt, &s.LastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if !s.IsActive || time.Now().UTC().After(s.ExpiresAt) {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

// Deactivate marks one session inactive.  Used on rotation and on
// single-session logout.
func (r *SessionRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0 WHERE id=? AND is_active=1", id)
	return err
}

// DeactivateAllForUser marks every active session of a user inactive.
// This logs the user out of all devices.
func (r *SessionRepo) DeactivateAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0 WHERE user_id=? AND is_active=1", userID)
	return err
}

// Touch updates last_active_at when a session's refresh token is used.
func (r *SessionRepo) Touch(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET last_active_at=NOW() WHERE id=?", id)
	return err
}

// DeleteExpiredBefore removes session rows whose expiry is in the past.
// Returns the number of deleted rows for the cleanup sweep log line.
func (r *SessionRepo) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", t)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeactivateIdleSince marks sessions inactive when they have not been used
// since the given threshold.
func (r *SessionRepo) DeactivateIdleSince(ctx context.Context, threshold time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0 WHERE last_active_at < ? AND is_active=1", threshold)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
