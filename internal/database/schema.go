package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the tables owned by the session subsystem.  Statements are
// idempotent so Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id              CHAR(36)     NOT NULL PRIMARY KEY,
		email           VARCHAR(255) NOT NULL,
		full_name       VARCHAR(255) NOT NULL DEFAULT '',
		role            VARCHAR(32)  NOT NULL DEFAULT 'student',
		avatar_url      VARCHAR(1024) NULL,
		bio             TEXT         NULL,
		approval_status VARCHAR(16)  NOT NULL DEFAULT 'pending',
		email_verified  BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at      DATETIME(6)  NOT NULL,
		updated_at      DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_profiles_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS admin_sessions (
		id           CHAR(36)     NOT NULL PRIMARY KEY,
		token_hash   CHAR(64)     NOT NULL,
		user_id      CHAR(36)     NOT NULL,
		issued_at    DATETIME(6)  NOT NULL,
		expires_at   DATETIME(6)  NOT NULL,
		last_used_at DATETIME(6)  NULL,
		user_agent   VARCHAR(512) NOT NULL DEFAULT '',
		ip_address   VARCHAR(64)  NOT NULL DEFAULT '',
		UNIQUE KEY uq_admin_sessions_token (token_hash),
		KEY ix_admin_sessions_expires (expires_at),
		KEY ix_admin_sessions_user (user_id),
		CONSTRAINT fk_admin_sessions_profile FOREIGN KEY (user_id) REFERENCES profiles (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the profiles and admin_sessions tables if missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
