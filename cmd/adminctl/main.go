// Command adminctl is a small client for the admin session endpoints.
//
//	adminctl [-server URL] [-session FILE] login -email EMAIL
//	adminctl status | whoami | profile | logout | clear
//	adminctl set-name NAME
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/coursehub/lms-admin-session/internal/client"
	"github.com/coursehub/lms-admin-session/internal/clientsession"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adminctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", envOr("ADMIN_SERVER", "http://localhost:8080"), "base URL of the session service")
	sessionPath := fs.String("session", "", "session file (default: user config dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("missing command: login, status, whoami, profile, set-name, logout or clear")
	}

	path := *sessionPath
	if path == "" {
		p, err := clientsession.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	c := client.New(*server, clientsession.NewStore(path))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		return login(ctx, c, rest, stdin, stdout, stderr)
	case "status":
		// Local only; the server is not asked.
		if !clientsession.Guard(c.Session) {
			fmt.Fprintln(stdout, "no super-admin session cached")
			return nil
		}
		sess, _ := c.Session.Load()
		fmt.Fprintf(stdout, "cached super-admin session for %s until %s\n", sess.Email, sess.ExpiresAt.Format(time.RFC3339))
		return nil
	case "whoami":
		v, err := c.Verify(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s (%s), session expires %s\n", v.User.Email, v.User.Role, v.ExpiresAt.Format(time.RFC3339))
		return nil
	case "profile":
		warnUnguarded(c, stderr)
		p, err := c.Profile(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, p)
	case "set-name":
		if len(rest) != 1 {
			return errors.New("usage: set-name NAME")
		}
		warnUnguarded(c, stderr)
		name := rest[0]
		p, err := c.UpdateProfile(ctx, client.ProfileUpdate{FullName: &name})
		if err != nil {
			return err
		}
		return printJSON(stdout, p)
	case "logout":
		if err := c.Logout(ctx); err != nil {
			return fmt.Errorf("local session cleared; server logout failed: %w", err)
		}
		fmt.Fprintln(stdout, "logged out")
		return nil
	case "clear":
		if err := c.Session.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "local session cleared")
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// warnUnguarded prints a hint when the local cache says the user is not
// a super admin.  The request is still sent; the server decides.
func warnUnguarded(c *client.Client, stderr io.Writer) {
	if !clientsession.Guard(c.Session) {
		fmt.Fprintln(stderr, "no super-admin session cached; run adminctl login")
	}
}

func login(ctx context.Context, c *client.Client, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "admin email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("login: -email is required")
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprint(stderr, "password: ")
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	res, err := c.Login(ctx, *email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "logged in as %s (%s) until %s\n", res.User.Email, res.User.Role, res.ExpiresAt.Format(time.RFC3339))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
