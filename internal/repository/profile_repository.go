package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/coursehub/lms-admin-session/internal/model"
)

// ProfileRepo reads and writes the `profiles` table.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

const profileColumns = "id,email,full_name,role,avatar_url,bio,approval_status,email_verified,created_at,updated_at"

// GetByEmail fetches a profile by exact email.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (model.Profile, error) {
	return r.getOne(ctx, "SELECT "+profileColumns+" FROM profiles WHERE email=? LIMIT 1", email)
}

// GetByID fetches a profile by id.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (model.Profile, error) {
	return r.getOne(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id=? LIMIT 1", id)
}

func (r *ProfileRepo) getOne(ctx context.Context, query string, arg any) (model.Profile, error) {
	var (
		p           model.Profile
		avatar, bio sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.FullName, &p.Role, &avatar, &bio,
		&p.ApprovalStatus, &p.EmailVerified, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Profile{}, translate(err)
	}
	p.AvatarURL = stringPtr(avatar)
	p.Bio = stringPtr(bio)
	return p, nil
}

// Insert creates a profile row.  A unique email violation is reported as
// ErrDuplicate so callers can re-read the winning row.
func (r *ProfileRepo) Insert(ctx context.Context, p *model.Profile) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO profiles ("+profileColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		p.ID, p.Email, p.FullName, p.Role, nullString(p.AvatarURL), nullString(p.Bio),
		p.ApprovalStatus, p.EmailVerified, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return translate(err)
}

// UpdateDetails changes the self-editable fields of a profile.  Nil
// arguments leave the column untouched; an empty avatar URL or bio sets
// the column to NULL.  The updated row is returned.
func (r *ProfileRepo) UpdateDetails(ctx context.Context, id string, fullName, avatarURL, bio *string, now time.Time) (model.Profile, error) {
	sets := []string{"updated_at=?"}
	args := []any{now.UTC()}
	if fullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, *fullName)
	}
	if avatarURL != nil {
		sets = append(sets, "avatar_url=?")
		args = append(args, emptyAsNull(*avatarURL))
	}
	if bio != nil {
		sets = append(sets, "bio=?")
		args = append(args, emptyAsNull(*bio))
	}
	args = append(args, id)
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE profiles SET "+strings.Join(sets, ",")+" WHERE id=?", args...); err != nil {
		return model.Profile{}, translate(err)
	}
	return r.GetByID(ctx, id)
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func emptyAsNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
