// Package clientsession is the admin client's local record of its login.
// It is a display hint only: the server verifies the token on every
// privileged request and never reads this state.
package clientsession

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coursehub/lms-admin-session/internal/model"
)

// Session is what the client remembers after a successful login.
type Session struct {
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	LoginTime time.Time `json:"login_time"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the server-side TTL has passed.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// VerifyResult is the server's answer to a verify call.
type VerifyResult struct {
	Valid     bool
	User      model.UserSummary
	ExpiresAt time.Time
}

// Store keeps the session in memory and, when path is set, in a 0600
// JSON file so it survives between CLI invocations.
type Store struct {
	mu   sync.Mutex
	path string
	cur  *Session

	Now func() time.Time
}

// NewStore returns a store backed by path.  An empty path keeps the
// session in memory only.
func NewStore(path string) *Store {
	return &Store{path: path, Now: time.Now}
}

// DefaultPath is the per-user location of the session file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "coursehub", "admin-session.json"), nil
}

// Save replaces the cached session.
func (s *Store) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(sess); err != nil {
		return err
	}
	s.cur = &sess
	return nil
}

// Load returns the cached session.  An expired or unreadable session is
// cleared and reported as absent.
func (s *Store) Load() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		sess, err := s.read()
		if err != nil {
			return Session{}, false
		}
		s.cur = &sess
	}
	if s.cur.Token == "" || s.cur.Expired(s.Now()) {
		_ = s.reset()
		return Session{}, false
	}
	return *s.cur, true
}

// Clear forgets everything: the file is removed and the in-memory copy
// dropped, so no stale privileged state survives a logout.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset()
}

// Refresh updates the cache from a verify answer.  A negative answer
// clears it; a positive one refreshes role, email and expiry but never
// creates a session that was not saved by a login.
func (s *Store) Refresh(v VerifyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !v.Valid {
		return s.reset()
	}
	if s.cur == nil {
		sess, err := s.read()
		if err != nil {
			return nil
		}
		s.cur = &sess
	}
	next := *s.cur
	next.Role = v.User.Role
	next.Email = v.User.Email
	if !v.ExpiresAt.IsZero() {
		next.ExpiresAt = v.ExpiresAt
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.cur = &next
	return nil
}

func (s *Store) reset() error {
	s.cur = nil
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (s *Store) read() (Session, error) {
	if s.path == "" {
		return Session{}, os.ErrNotExist
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("parse session file: %w", err)
	}
	return sess, nil
}

// write goes through a temp file and rename so a crash never leaves a
// half-written token behind.
func (s *Store) write(sess Session) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".admin-session-*")
	if err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Guard is the fast route check: true when a live super-admin session is
// cached.  It decides what to show, never what to allow.
func Guard(s *Store) bool {
	sess, ok := s.Load()
	return ok && sess.Role == model.RoleSuperAdmin
}
