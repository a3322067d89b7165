package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/lms-admin-session/internal/auth"
	"github.com/coursehub/lms-admin-session/internal/client"
	"github.com/coursehub/lms-admin-session/internal/handler"
	"github.com/coursehub/lms-admin-session/internal/logging"
	"github.com/coursehub/lms-admin-session/internal/model"
	"github.com/coursehub/lms-admin-session/internal/repository"
	"github.com/coursehub/lms-admin-session/internal/router"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	entries := []model.Credential{{Email: "stv7168@gmail.com", DisplayName: "Super Admin", Password: "12345678"}}
	if err := auth.SeedHashes(entries, bcrypt.MinCost, nil); err != nil {
		t.Fatal(err)
	}
	reg, err := auth.NewRegistry(entries)
	if err != nil {
		t.Fatal(err)
	}
	log := logging.Discard()
	svc := auth.NewService(reg, repository.NewMemorySessionRepo(), repository.NewMemoryProfileRepo(), nil, 0, log)

	e := echo.New()
	router.RegisterAdmin(e, handler.NewAdminHandler(svc, log), handler.NewProfileHandler(svc, log), nil, log)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

type cli struct {
	server  string
	session string
}

func (c cli) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-server", c.server, "-session", c.session}, args...)
	err := run(full, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestAdminctlSession(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")
	c := cli{server: startServer(t).URL, session: filepath.Join(t.TempDir(), "session.json")}

	out, _, err := c.run(t, "", "status")
	if err != nil || !strings.Contains(out, "no super-admin session cached") {
		t.Fatalf("status before login: %q %v", out, err)
	}

	_, errOut, err := c.run(t, "", "profile")
	if !errors.Is(err, client.ErrNoSession) {
		t.Fatalf("profile before login: %v", err)
	}
	if !strings.Contains(errOut, "no super-admin session cached") {
		t.Fatalf("missing guard hint: %q", errOut)
	}

	out, _, err = c.run(t, "12345678\n", "login", "-email", "stv7168@gmail.com")
	if err != nil || !strings.Contains(out, "logged in as stv7168@gmail.com (super_admin)") {
		t.Fatalf("login: %q %v", out, err)
	}

	out, _, err = c.run(t, "", "status")
	if err != nil || !strings.Contains(out, "cached super-admin session for stv7168@gmail.com") {
		t.Fatalf("status after login: %q %v", out, err)
	}

	out, _, err = c.run(t, "", "whoami")
	if err != nil || !strings.HasPrefix(out, "stv7168@gmail.com (super_admin)") {
		t.Fatalf("whoami: %q %v", out, err)
	}

	out, errOut, err = c.run(t, "", "set-name", "New Name")
	if err != nil || !strings.Contains(out, `"full_name": "New Name"`) || errOut != "" {
		t.Fatalf("set-name: %q %q %v", out, errOut, err)
	}

	out, _, err = c.run(t, "", "logout")
	if err != nil || !strings.Contains(out, "logged out") {
		t.Fatalf("logout: %q %v", out, err)
	}
	out, _, _ = c.run(t, "", "status")
	if !strings.Contains(out, "no super-admin session cached") {
		t.Fatalf("status after logout: %q", out)
	}
}

func TestAdminctlWrongPassword(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "wrong")
	c := cli{server: startServer(t).URL, session: filepath.Join(t.TempDir(), "session.json")}

	_, _, err := c.run(t, "", "login", "-email", "stv7168@gmail.com")
	if !client.IsUnauthorized(err) {
		t.Fatalf("login: %v, want 401", err)
	}
	out, _, _ := c.run(t, "", "status")
	if !strings.Contains(out, "no super-admin session cached") {
		t.Fatalf("failed login cached a session: %q", out)
	}
}

func TestAdminctlUsageErrors(t *testing.T) {
	c := cli{server: "http://127.0.0.1:1", session: filepath.Join(t.TempDir(), "session.json")}
	tests := [][]string{
		{},
		{"bogus"},
		{"set-name"},
		{"login"},
	}
	for _, args := range tests {
		if _, _, err := c.run(t, "", args...); err == nil {
			t.Errorf("run(%q): expected error", args)
		}
	}
}
