package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/lms-admin-session/internal/logging"
	"github.com/coursehub/lms-admin-session/internal/model"
	"github.com/coursehub/lms-admin-session/internal/queue"
	"github.com/coursehub/lms-admin-session/internal/repository"
)

const (
	adminEmail    = "stv7168@gmail.com"
	adminPassword = "12345678"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []queue.SessionEvent
}

func (e *recordingEmitter) Emit(_ context.Context, ev queue.SessionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc      *Service
	sessions *repository.MemorySessionRepo
	profiles *repository.MemoryProfileRepo
	events   *recordingEmitter
	clock    *fakeClock
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	entries := []model.Credential{
		{Email: adminEmail, DisplayName: "Super Admin", Password: adminPassword},
		{Email: "ops@coursehub.dev", DisplayName: "Ops", Password: "another-secret"},
	}
	if err := SeedHashes(entries, bcrypt.MinCost, nil); err != nil {
		t.Fatalf("seed hashes: %v", err)
	}
	reg, err := NewRegistry(entries)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: repository.NewMemorySessionRepo(),
		profiles: repository.NewMemoryProfileRepo(),
		events:   &recordingEmitter{},
		clock:    &fakeClock{now: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)},
	}
	f.svc = NewService(testRegistry(t), f.sessions, f.profiles, f.events, 0, logging.Discard())
	f.svc.Now = f.clock.Now
	return f
}

func (f *fixture) login(t *testing.T) *LoginResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), LoginInput{
		Email:     adminEmail,
		Password:  adminPassword,
		UserAgent: "go-test",
		IPAddress: "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}
