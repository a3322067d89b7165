// Package auth implements the super-admin session lifecycle: credential
// check, token issuance, verification, profile resolution and logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/lms-admin-session/internal/model"
	"github.com/coursehub/lms-admin-session/internal/queue"
	"github.com/coursehub/lms-admin-session/internal/repository"
)

// DefaultSessionTTL is the fixed lifetime of an issued session.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore is the persistence the service needs for sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	FindActive(ctx context.Context, tokenHash string, now time.Time) (model.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	DeleteByHash(ctx context.Context, tokenHash string) (model.Session, error)
	CountActiveForUser(ctx context.Context, userID string, now time.Time) (int, error)
}

// ProfileStore is the persistence the service needs for profiles.
type ProfileStore interface {
	GetByEmail(ctx context.Context, email string) (model.Profile, error)
	GetByID(ctx context.Context, id string) (model.Profile, error)
	Insert(ctx context.Context, p *model.Profile) error
	UpdateDetails(ctx context.Context, id string, fullName, avatarURL, bio *string, now time.Time) (model.Profile, error)
}

// Emitter receives best-effort lifecycle events.  *queue.Dispatcher
// satisfies it.
type Emitter interface {
	Emit(ctx context.Context, ev queue.SessionEvent)
}

// Service wires the registry and stores together.
type Service struct {
	registry *Registry
	sessions SessionStore
	profiles ProfileStore
	events   Emitter
	log      *slog.Logger
	ttl      time.Duration

	// Now is the clock; tests replace it to move past the TTL.
	Now func() time.Time
	// NewToken generates bearer tokens.
	NewToken func() (string, error)
}

// NewService builds a Service.  ttl <= 0 selects DefaultSessionTTL and a
// nil events emitter disables lifecycle events.
func NewService(reg *Registry, sessions SessionStore, profiles ProfileStore, events Emitter, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		registry: reg,
		sessions: sessions,
		profiles: profiles,
		events:   events,
		log:      logger,
		ttl:      ttl,
		Now:      func() time.Time { return time.Now().UTC() },
		NewToken: NewToken,
	}
}

// TTL returns the session lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// LoginInput is what a login request carries.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	User      model.UserSummary
	ExpiresAt time.Time
}

// Login checks the credentials, makes sure a profile exists and issues a
// fresh session.  Persisting the session row is best effort: a failed
// insert is logged and the token is still returned.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	// The registry match is exact; padding is not stripped.
	cred, err := s.registry.Authenticate(in.Email, in.Password)
	if err != nil {
		s.log.Info("admin login rejected", "ip", in.IPAddress)
		return nil, ErrUnauthorized
	}

	token, err := s.NewToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	now := s.Now()
	expiresAt := now.Add(s.ttl)

	profile, err := s.EnsureSuperAdmin(ctx, cred)
	if err != nil {
		return nil, err
	}

	sess := &model.Session{
		ID:        uuid.NewString(),
		TokenHash: HashToken(token),
		UserID:    profile.ID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		UserAgent: in.UserAgent,
		IPAddress: in.IPAddress,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		s.log.Error("session insert failed; login continues", "user_id", profile.ID, "error", err)
	}

	s.emit(ctx, queue.SessionEvent{
		Type:      queue.EventSessionIssued,
		SessionID: sess.ID,
		UserID:    profile.ID,
		Email:     profile.Email,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	})
	active, err := s.sessions.CountActiveForUser(ctx, profile.ID, now)
	if err != nil {
		active = -1
	}
	s.log.Info("admin login", "user_id", profile.ID, "session_id", sess.ID, "expires_at", expiresAt, "active_sessions", active)

	return &LoginResult{Token: token, User: profile.Summary(), ExpiresAt: expiresAt}, nil
}

// EnsureSuperAdmin returns the profile for a registry credential,
// creating it on first login.  A concurrent first login that wins the
// insert race is resolved by reading its row.
func (s *Service) EnsureSuperAdmin(ctx context.Context, cred model.Credential) (model.Profile, error) {
	p, err := s.profiles.GetByEmail(ctx, cred.Email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Profile{}, fmt.Errorf("%w: load profile: %v", ErrUpstream, err)
	}

	now := s.Now()
	p = model.Profile{
		ID:             uuid.NewString(),
		Email:          cred.Email,
		FullName:       cred.DisplayName,
		Role:           cred.Role(),
		ApprovalStatus: model.ApprovalApproved,
		EmailVerified:  true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.profiles.Insert(ctx, &p)
	switch {
	case err == nil:
		s.log.Info("super admin profile created", "user_id", p.ID, "email", p.Email)
		return p, nil
	case errors.Is(err, repository.ErrDuplicate):
		existing, gerr := s.profiles.GetByEmail(ctx, cred.Email)
		if gerr != nil {
			return model.Profile{}, fmt.Errorf("%w: reload profile: %v", ErrUpstream, gerr)
		}
		return existing, nil
	default:
		return model.Profile{}, fmt.Errorf("%w: create profile: %v", ErrUpstream, err)
	}
}

// VerifiedSession is the outcome of a successful verification.
type VerifiedSession struct {
	Session model.Session
	User    model.UserSummary
}

// Verify checks a bearer token against the session store.  Unknown,
// expired and logged-out tokens all yield ErrInvalidToken.  The
// last-used timestamp is refreshed on success; a failure to do so is
// logged and ignored.
func (s *Service) Verify(ctx context.Context, token string) (*VerifiedSession, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	now := s.Now()
	sess, err := s.sessions.FindActive(ctx, HashToken(token), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: find session: %v", ErrUpstream, err)
	}
	// Stores filter on expiry already; this guards fakes and clock skew.
	if sess.Expired(now) {
		return nil, ErrInvalidToken
	}

	if err := s.sessions.Touch(ctx, sess.ID, now); err != nil {
		s.log.Warn("session touch failed", "session_id", sess.ID, "error", err)
	} else {
		sess.LastUsedAt = &now
	}

	p, err := s.profiles.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: load profile: %v", ErrUpstream, err)
	}
	return &VerifiedSession{Session: sess, User: p.Summary()}, nil
}

// Logout deletes the session for token.  Unknown, expired and already
// deleted tokens are treated as logged out.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrMissingToken
	}
	sess, err := s.sessions.DeleteByHash(ctx, HashToken(token))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.log.Error("session delete failed", "error", err)
		return fmt.Errorf("%w: %v", ErrLogoutFailed, err)
	}

	ev := queue.SessionEvent{
		Type:      queue.EventSessionRevoked,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		IPAddress: sess.IPAddress,
		UserAgent: sess.UserAgent,
	}
	// The email only enriches the audit line; a lookup failure is ignored.
	if p, err := s.profiles.GetByID(ctx, sess.UserID); err == nil {
		ev.Email = p.Email
	}
	s.emit(ctx, ev)
	s.log.Info("admin logout", "user_id", sess.UserID, "session_id", sess.ID)
	return nil
}

// Profile returns the full profile of a verified user.
func (s *Service) Profile(ctx context.Context, userID string) (model.Profile, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("%w: load profile: %v", ErrUpstream, err)
	}
	return p, nil
}

// ProfileUpdate holds the self-editable profile fields.  Nil means keep.
type ProfileUpdate struct {
	FullName  *string
	AvatarURL *string
	Bio       *string
}

// UpdateProfile applies a partial update.  Email and role are not
// reachable through this path.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (model.Profile, error) {
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return model.Profile{}, fmt.Errorf("%w: full_name cannot be empty", ErrValidation)
		}
		in.FullName = &name
	}
	p, err := s.profiles.UpdateDetails(ctx, userID, in.FullName, in.AvatarURL, in.Bio, s.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("%w: update profile: %v", ErrUpstream, err)
	}
	return p, nil
}

func (s *Service) emit(ctx context.Context, ev queue.SessionEvent) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, ev)
}
