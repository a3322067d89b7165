package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/lms-admin-session/internal/model"
)

// Registry is the static list of privileged credentials.  It is built
// once at startup and read concurrently afterwards without locking.
type Registry struct {
	byEmail map[string]model.Credential
	// dummy is compared against when the email is unknown so that both
	// failure paths spend the same bcrypt time.
	dummy []byte
}

// NewRegistry validates the entries and indexes them by exact email.
// Every entry must already carry a bcrypt PasswordHash.
func NewRegistry(entries []model.Credential) (*Registry, error) {
	r := &Registry{byEmail: make(map[string]model.Credential, len(entries))}
	cost := bcrypt.DefaultCost
	for i, c := range entries {
		c.Email = strings.TrimSpace(c.Email)
		if c.Email == "" {
			return nil, fmt.Errorf("registry entry %d: email is required", i)
		}
		if _, dup := r.byEmail[c.Email]; dup {
			return nil, fmt.Errorf("registry entry %d: duplicate email %s", i, c.Email)
		}
		hc, err := bcrypt.Cost([]byte(c.PasswordHash))
		if err != nil {
			return nil, fmt.Errorf("registry entry %d (%s): invalid password hash: %w", i, c.Email, err)
		}
		cost = hc
		c.Password = ""
		r.byEmail[c.Email] = c
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("registry-dummy-password"), cost)
	if err != nil {
		return nil, err
	}
	r.dummy = dummy
	return r, nil
}

// LoadRegistryFile reads a JSON array of credentials.  Entries holding a
// plaintext "password" instead of a "password_hash" are hashed with cost
// and a warning is logged, since the plaintext then lives in the file.
func LoadRegistryFile(path string, cost int, logger *slog.Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var entries []model.Credential
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if err := SeedHashes(entries, cost, logger); err != nil {
		return nil, err
	}
	return NewRegistry(entries)
}

// SeedHashes fills PasswordHash for entries that only carry a plaintext
// Password seed.
func SeedHashes(entries []model.Credential, cost int, logger *slog.Logger) error {
	for i := range entries {
		c := &entries[i]
		if c.PasswordHash != "" {
			c.Password = ""
			continue
		}
		if c.Password == "" {
			return fmt.Errorf("registry entry %d (%s): password_hash is required", i, c.Email)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(c.Password), cost)
		if err != nil {
			return fmt.Errorf("registry entry %d (%s): hash seed: %w", i, c.Email, err)
		}
		c.PasswordHash = string(h)
		c.Password = ""
		if logger != nil {
			logger.Warn("registry entry uses a plaintext password seed; store password_hash instead", "email", c.Email)
		}
	}
	return nil
}

// Authenticate checks an email/password pair.  Unknown emails and wrong
// passwords both return ErrUnauthorized after the same amount of work.
func (r *Registry) Authenticate(email, password string) (model.Credential, error) {
	c, ok := r.lookup(email)
	hash := r.dummy
	if ok {
		hash = []byte(c.PasswordHash)
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if !ok || err != nil {
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return model.Credential{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return model.Credential{}, ErrUnauthorized
	}
	return c, nil
}

// lookup is an exact, case-sensitive match.
func (r *Registry) lookup(email string) (model.Credential, bool) {
	c, ok := r.byEmail[email]
	return c, ok
}

// Len returns the number of registered credentials.
func (r *Registry) Len() int { return len(r.byEmail) }
