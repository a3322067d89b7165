package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coursehub/lms-admin-session/internal/model"
	"github.com/coursehub/lms-admin-session/internal/queue"
	"github.com/coursehub/lms-admin-session/internal/repository"
)

func TestLoginIssuesSessionAndCreatesProfile(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)

	if !base64URL.MatchString(res.Token) || strings.ContainsAny(res.Token, "+/=") {
		t.Fatalf("token %q is not base64url", res.Token)
	}
	if res.User.Role != model.RoleSuperAdmin || res.User.Email != adminEmail {
		t.Fatalf("unexpected user: %+v", res.User)
	}
	if want := f.clock.Now().Add(24 * time.Hour); !res.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, res.ExpiresAt)
	}

	sess, ok := f.sessions.Get(HashToken(res.Token))
	if !ok {
		t.Fatalf("session row not stored under token hash")
	}
	if sess.UserID != res.User.ID || sess.UserAgent != "go-test" || sess.IPAddress != "127.0.0.1" {
		t.Fatalf("unexpected session row: %+v", sess)
	}
	if !sess.ExpiresAt.Equal(sess.IssuedAt.Add(24*time.Hour)) || sess.LastUsedAt != nil {
		t.Fatalf("unexpected session timestamps: %+v", sess)
	}

	p, err := f.profiles.GetByEmail(context.Background(), adminEmail)
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if p.ApprovalStatus != model.ApprovalApproved || !p.EmailVerified || p.FullName != "Super Admin" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != queue.EventSessionIssued {
		t.Fatalf("expected one issued event, got %v", got)
	}
}

func TestLoginReusesExistingProfile(t *testing.T) {
	f := newFixture(t)
	first := f.login(t)
	second := f.login(t)

	if first.User.ID != second.User.ID {
		t.Fatalf("expected the same profile, got %s and %s", first.User.ID, second.User.ID)
	}
	if first.Token == second.Token {
		t.Fatalf("two logins returned the same token")
	}
	if f.sessions.Len() != 2 {
		t.Fatalf("expected two session rows, got %d", f.sessions.Len())
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, wrongPass := f.svc.Login(ctx, LoginInput{Email: adminEmail, Password: "nope"})
	_, unknown := f.svc.Login(ctx, LoginInput{Email: "ghost@coursehub.dev", Password: adminPassword})

	if !errors.Is(wrongPass, ErrUnauthorized) || !errors.Is(unknown, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for both, got %v / %v", wrongPass, unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("error messages differ: %q vs %q", wrongPass, unknown)
	}

	for _, padded := range []string{"  " + adminEmail + " ", adminEmail + "\n", "\t" + adminEmail} {
		res, err := f.svc.Login(ctx, LoginInput{Email: padded, Password: adminPassword})
		if res != nil || !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Login(%q): expected ErrUnauthorized, got %v / %v", padded, res, err)
		}
		if err.Error() != unknown.Error() {
			t.Fatalf("Login(%q): error %q differs from unknown-email error %q", padded, err, unknown)
		}
	}
	if f.sessions.Len() != 0 {
		t.Fatalf("failed logins must not create sessions")
	}
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t)
	for _, in := range []LoginInput{{Email: "", Password: "x"}, {Email: adminEmail}, {Email: "   ", Password: "x"}} {
		if _, err := f.svc.Login(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("Login(%+v): expected ErrValidation, got %v", in, err)
		}
	}
}

func TestLoginSucceedsWhenSessionInsertFails(t *testing.T) {
	f := newFixture(t)
	f.sessions.Err = errors.New("table locked")

	res := f.login(t)
	if res.Token == "" {
		t.Fatalf("expected a token even though the session row failed")
	}

	f.sessions.Err = nil
	if _, err := f.svc.Verify(context.Background(), res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("untracked token must not verify, got %v", err)
	}
}

func TestLoginFailsWhenProfileStoreIsDown(t *testing.T) {
	f := newFixture(t)
	f.profiles.Err = errors.New("connection refused")

	_, err := f.svc.Login(context.Background(), LoginInput{Email: adminEmail, Password: adminPassword})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestVerifyAfterLogin(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)
	f.clock.Advance(time.Minute)

	v, err := f.svc.Verify(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.User.ID != res.User.ID || v.User.Email != adminEmail {
		t.Fatalf("verify returned a different user: %+v", v.User)
	}
	stored, _ := f.sessions.Get(HashToken(res.Token))
	if stored.LastUsedAt == nil || !stored.LastUsedAt.Equal(f.clock.Now()) {
		t.Fatalf("expected last_used_at to advance, got %v", stored.LastUsedAt)
	}
}

func TestVerifyAfterTTLFails(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)

	f.clock.Advance(24*time.Hour - time.Second)
	if _, err := f.svc.Verify(context.Background(), res.Token); err != nil {
		t.Fatalf("token should still be valid just before expiry: %v", err)
	}

	f.clock.Advance(time.Second)
	if _, err := f.svc.Verify(context.Background(), res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken at expiry, got %v", err)
	}

	// A new login issues a brand-new token instead of renewing.
	again := f.login(t)
	if again.Token == res.Token {
		t.Fatalf("expired token was reused")
	}
	if _, err := f.svc.Verify(context.Background(), res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token came back to life: %v", err)
	}
}

func TestVerifyRejectsUnknownAndEmpty(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Verify(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := f.svc.Verify(context.Background(), "not-a-real-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

type flakyTouchStore struct {
	*repository.MemorySessionRepo
}

func (flakyTouchStore) Touch(context.Context, string, time.Time) error {
	return errors.New("deadlock")
}

func TestVerifyIgnoresTouchFailure(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)

	svc := NewService(f.svc.registry, flakyTouchStore{f.sessions}, f.profiles, nil, 0, f.svc.log)
	svc.Now = f.clock.Now
	v, err := svc.Verify(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("touch failure must not fail verification: %v", err)
	}
	if v.Session.LastUsedAt != nil {
		t.Fatalf("last_used_at should not be reported when the touch failed")
	}
}

func TestVerifyStoreFailureIsUpstream(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)
	f.sessions.Err = errors.New("io timeout")

	if _, err := f.svc.Verify(context.Background(), res.Token); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := f.svc.Logout(ctx, res.Token); err != nil {
			t.Fatalf("logout %d: %v", i+1, err)
		}
	}
	if _, err := f.svc.Verify(ctx, res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}
	if err := f.svc.Logout(ctx, "never-issued"); err != nil {
		t.Fatalf("logout of unknown token: %v", err)
	}

	revoked := 0
	for _, typ := range f.events.types() {
		if typ == queue.EventSessionRevoked {
			revoked++
		}
	}
	if revoked != 1 {
		t.Fatalf("expected one revoked event, got %d", revoked)
	}
}

func TestLogoutEventIdentifiesSession(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)
	issued, ok := f.sessions.Get(HashToken(res.Token))
	if !ok {
		t.Fatal("session row missing after login")
	}

	if err := f.svc.Logout(context.Background(), res.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}

	var got *queue.SessionEvent
	for i := range f.events.events {
		if f.events.events[i].Type == queue.EventSessionRevoked {
			got = &f.events.events[i]
		}
	}
	if got == nil {
		t.Fatal("no revoked event")
	}
	if got.SessionID != issued.ID || got.UserID != res.User.ID || got.Email != adminEmail {
		t.Fatalf("revoked event = %+v, want session %s user %s", got, issued.ID, res.User.ID)
	}
	if got.IPAddress != "127.0.0.1" || got.UserAgent != "go-test" {
		t.Fatalf("revoked event lost client details: %+v", got)
	}
}

func TestLogoutExpiredToken(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)
	f.clock.Advance(48 * time.Hour)

	if err := f.svc.Logout(context.Background(), res.Token); err != nil {
		t.Fatalf("logout of expired token: %v", err)
	}
	if f.sessions.Len() != 0 {
		t.Fatalf("expired row should have been deleted")
	}
}

func TestLogoutStorageFailure(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)
	f.sessions.Err = errors.New("disk full")

	if err := f.svc.Logout(context.Background(), res.Token); !errors.Is(err, ErrLogoutFailed) {
		t.Fatalf("expected ErrLogoutFailed, got %v", err)
	}
}

func TestTwoSessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.login(t)
	b := f.login(t)

	if err := f.svc.Logout(ctx, a.Token); err != nil {
		t.Fatalf("logout a: %v", err)
	}
	if _, err := f.svc.Verify(ctx, a.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("a should be invalid, got %v", err)
	}
	if _, err := f.svc.Verify(ctx, b.Token); err != nil {
		t.Fatalf("b should remain valid: %v", err)
	}
}

type racingProfiles struct {
	*repository.MemoryProfileRepo
	once sync.Once
}

// GetByEmail misses once, simulating another login that inserts the row
// between our select and our insert.
func (r *racingProfiles) GetByEmail(ctx context.Context, email string) (model.Profile, error) {
	var raced bool
	r.once.Do(func() {
		raced = true
		now := time.Now()
		_ = r.MemoryProfileRepo.Insert(ctx, &model.Profile{
			ID: "winner", Email: email, Role: model.RoleSuperAdmin,
			ApprovalStatus: model.ApprovalApproved, EmailVerified: true,
			CreatedAt: now, UpdatedAt: now,
		})
	})
	if raced {
		return model.Profile{}, repository.ErrNotFound
	}
	return r.MemoryProfileRepo.GetByEmail(ctx, email)
}

func TestEnsureSuperAdminResolvesInsertRace(t *testing.T) {
	f := newFixture(t)
	profiles := &racingProfiles{MemoryProfileRepo: f.profiles}
	svc := NewService(f.svc.registry, f.sessions, profiles, nil, 0, f.svc.log)

	p, err := svc.EnsureSuperAdmin(context.Background(), model.Credential{Email: adminEmail})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if p.ID != "winner" {
		t.Fatalf("expected the racing row to win, got %s", p.ID)
	}
}

func TestUpdateProfileChangesOnlyEditableFields(t *testing.T) {
	f := newFixture(t)
	res := f.login(t)
	name := "New Name"

	p, err := f.svc.UpdateProfile(context.Background(), res.User.ID, ProfileUpdate{FullName: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.FullName != "New Name" || p.Email != adminEmail || p.Role != model.RoleSuperAdmin {
		t.Fatalf("unexpected profile after update: %+v", p)
	}

	bio := "Runs the catalogue"
	p, err = f.svc.UpdateProfile(context.Background(), res.User.ID, ProfileUpdate{Bio: &bio})
	if err != nil {
		t.Fatalf("update bio: %v", err)
	}
	if p.FullName != "New Name" || p.Bio == nil || *p.Bio != bio {
		t.Fatalf("partial update clobbered fields: %+v", p)
	}
}

func TestUpdateProfileErrors(t *testing.T) {
	f := newFixture(t)
	blank := "  "
	if _, err := f.svc.UpdateProfile(context.Background(), "x", ProfileUpdate{FullName: &blank}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.UpdateProfile(context.Background(), "missing", ProfileUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Profile(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
