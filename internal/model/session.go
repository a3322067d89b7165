package model

import "time"

// Session models a row in the `admin_sessions` table.  The bearer token
// handed to the client is never stored; only its SHA-256 hex digest.
//
// Fields:
//
//	ID         – primary key (uuid).
//	TokenHash  – SHA-256 hex digest of the bearer token (unique).
//	UserID     – owning profile id.
//	IssuedAt   – creation time.
//	ExpiresAt  – IssuedAt + session TTL.
//	LastUsedAt – last successful verification, nil until the first one.
//	UserAgent  – client user agent at login.
//	IPAddress  – client address at login.
type Session struct {
	ID         string
	TokenHash  string
	UserID     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	UserAgent  string
	IPAddress  string
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
