package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/coursehub/lms-admin-session/internal/model"
)

// SessionRepo persists admin sessions in the `admin_sessions` table.
// Rows are only inserted, touched and deleted; nothing else is updated.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

const sessionColumns = "id,token_hash,user_id,issued_at,expires_at,last_used_at,user_agent,ip_address"

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO admin_sessions ("+sessionColumns+") VALUES (?,?,?,?,?,?,?,?)",
		s.ID, s.TokenHash, s.UserID, s.IssuedAt.UTC(), s.ExpiresAt.UTC(), nullTime(s.LastUsedAt), s.UserAgent, s.IPAddress)
	return translate(err)
}

// FindActive returns the session whose token hash matches and whose
// expiry is strictly after now.  ErrNotFound covers unknown, expired and
// deleted tokens alike.
func (r *SessionRepo) FindActive(ctx context.Context, tokenHash string, now time.Time) (model.Session, error) {
	var (
		s        model.Session
		lastUsed sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM admin_sessions WHERE token_hash=? AND expires_at>? LIMIT 1",
		tokenHash, now.UTC()).Scan(&s.ID, &s.TokenHash, &s.UserID, &s.IssuedAt, &s.ExpiresAt, &lastUsed, &s.UserAgent, &s.IPAddress)
	if err != nil {
		return model.Session{}, translate(err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		s.LastUsedAt = &t
	}
	return s, nil
}

// Touch records a successful verification.
func (r *SessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE admin_sessions SET last_used_at=? WHERE id=?", at.UTC(), id)
	return translate(err)
}

// DeleteByHash removes the session for a token, expired or not, and
// returns the removed row.  ErrNotFound means there was nothing to
// delete, including when a concurrent logout removed it first.
func (r *SessionRepo) DeleteByHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var (
		s        model.Session
		lastUsed sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM admin_sessions WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&s.ID, &s.TokenHash, &s.UserID, &s.IssuedAt, &s.ExpiresAt, &lastUsed, &s.UserAgent, &s.IPAddress)
	if err != nil {
		return model.Session{}, translate(err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		s.LastUsedAt = &t
	}

	res, err := r.DB.ExecContext(ctx, "DELETE FROM admin_sessions WHERE id=?", s.ID)
	if err != nil {
		return model.Session{}, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Session{}, err
	}
	if n == 0 {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

// DeleteExpired removes every session whose expiry is at or before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM admin_sessions WHERE expires_at<=?", now.UTC())
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

// CountActiveForUser counts the unexpired sessions owned by a profile.
func (r *SessionRepo) CountActiveForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM admin_sessions WHERE user_id=? AND expires_at>?", userID, now.UTC()).Scan(&n)
	return n, translate(err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
