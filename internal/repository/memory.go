package repository

import (
	"context"
	"sync"
	"time"

	"github.com/coursehub/lms-admin-session/internal/model"
)

// MemorySessionRepo is an in-process session table used with STORE=memory
// and in tests.  It mirrors the MySQL repository's semantics, including
// the unique token hash.
type MemorySessionRepo struct {
	mu     sync.Mutex
	byHash map[string]model.Session

	// Err, when set, is returned by every call.
	Err error
}

func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{byHash: map[string]model.Session{}}
}

func (r *MemorySessionRepo) Create(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.byHash[s.TokenHash]; ok {
		return ErrDuplicate
	}
	r.byHash[s.TokenHash] = *s
	return nil
}

func (r *MemorySessionRepo) FindActive(_ context.Context, tokenHash string, now time.Time) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return model.Session{}, r.Err
	}
	s, ok := r.byHash[tokenHash]
	if !ok || !s.ExpiresAt.After(now) {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

func (r *MemorySessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for h, s := range r.byHash {
		if s.ID == id {
			t := at
			s.LastUsedAt = &t
			r.byHash[h] = s
			return nil
		}
	}
	return nil
}

func (r *MemorySessionRepo) DeleteByHash(_ context.Context, tokenHash string) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return model.Session{}, r.Err
	}
	s, ok := r.byHash[tokenHash]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	delete(r.byHash, tokenHash)
	return s, nil
}

func (r *MemorySessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for h, s := range r.byHash {
		if !s.ExpiresAt.After(now) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func (r *MemorySessionRepo) CountActiveForUser(_ context.Context, userID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	n := 0
	for _, s := range r.byHash {
		if s.UserID == userID && s.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows, expired ones included.
func (r *MemorySessionRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}

// Get returns the row for a token hash regardless of expiry.
func (r *MemorySessionRepo) Get(tokenHash string) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[tokenHash]
	return s, ok
}

// MemoryProfileRepo is the in-process counterpart of ProfileRepo.
type MemoryProfileRepo struct {
	mu   sync.Mutex
	byID map[string]model.Profile

	// Err, when set, is returned by every call.
	Err error
}

func NewMemoryProfileRepo() *MemoryProfileRepo {
	return &MemoryProfileRepo{byID: map[string]model.Profile{}}
}

func (r *MemoryProfileRepo) GetByEmail(_ context.Context, email string) (model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return model.Profile{}, r.Err
	}
	for _, p := range r.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return model.Profile{}, ErrNotFound
}

func (r *MemoryProfileRepo) GetByID(_ context.Context, id string) (model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return model.Profile{}, r.Err
	}
	p, ok := r.byID[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryProfileRepo) Insert(_ context.Context, p *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, existing := range r.byID {
		if existing.Email == p.Email {
			return ErrDuplicate
		}
	}
	r.byID[p.ID] = *p
	return nil
}

func (r *MemoryProfileRepo) UpdateDetails(_ context.Context, id string, fullName, avatarURL, bio *string, now time.Time) (model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return model.Profile{}, r.Err
	}
	p, ok := r.byID[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	if fullName != nil {
		p.FullName = *fullName
	}
	if avatarURL != nil {
		p.AvatarURL = clearable(*avatarURL)
	}
	if bio != nil {
		p.Bio = clearable(*bio)
	}
	p.UpdatedAt = now
	r.byID[id] = p
	return p, nil
}

func clearable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
