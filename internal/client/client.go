// Package client talks to the admin session endpoints and keeps the
// local client session in step with the server's answers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coursehub/lms-admin-session/internal/clientsession"
	"github.com/coursehub/lms-admin-session/internal/model"
)

// ErrNoSession is returned when a call needs a token and none is cached.
var ErrNoSession = errors.New("not logged in")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session *clientsession.Store
	Now     func() time.Time
}

func New(baseURL string, store *clientsession.Store) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Session: store,
		Now:     time.Now,
	}
}

// LoginResponse mirrors POST /v1/admin/login.
type LoginResponse struct {
	Success   bool              `json:"success"`
	Token     string            `json:"token"`
	User      model.UserSummary `json:"user"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// VerifyResponse mirrors GET /v1/admin/verify.
type VerifyResponse struct {
	Valid     bool              `json:"valid"`
	User      model.UserSummary `json:"user"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// ProfileUpdate is the PUT /v1/admin/profile body.  Nil fields are omitted.
type ProfileUpdate struct {
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Bio       *string `json:"bio,omitempty"`
}

// Login authenticates and caches the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/login", "", body, &out); err != nil {
		return nil, err
	}
	err := c.Session.Save(clientsession.Session{
		Role:      out.User.Role,
		Email:     out.User.Email,
		Token:     out.Token,
		LoginTime: c.Now().UTC(),
		ExpiresAt: out.ExpiresAt,
	})
	if err != nil {
		return &out, fmt.Errorf("cache session: %w", err)
	}
	return &out, nil
}

// Verify asks the server whether the cached token is still good and
// refreshes or clears the cache from the answer.
func (c *Client) Verify(ctx context.Context) (*VerifyResponse, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	var out VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/v1/admin/verify", token, nil, &out); err != nil {
		if IsUnauthorized(err) {
			_ = c.Session.Refresh(clientsession.VerifyResult{Valid: false})
		}
		return nil, err
	}
	if err := c.Session.Refresh(clientsession.VerifyResult{Valid: out.Valid, User: out.User, ExpiresAt: out.ExpiresAt}); err != nil {
		return &out, fmt.Errorf("cache session: %w", err)
	}
	return &out, nil
}

// Logout revokes the server session and always clears the local cache,
// even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	sess, ok := c.Session.Load()
	var callErr error
	if ok {
		callErr = c.do(ctx, http.MethodPost, "/v1/admin/logout", sess.Token, nil, nil)
	}
	if err := c.Session.Clear(); err != nil {
		return errors.Join(callErr, err)
	}
	return callErr
}

func (c *Client) Profile(ctx context.Context) (model.Profile, error) {
	var p model.Profile
	err := c.authed(ctx, http.MethodGet, "/v1/admin/profile", nil, &p)
	return p, err
}

func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (model.Profile, error) {
	var p model.Profile
	err := c.authed(ctx, http.MethodPut, "/v1/admin/profile", in, &p)
	return p, err
}

// authed performs a privileged call; a 401 means the server no longer
// honours the token, so the cache is dropped.
func (c *Client) authed(ctx context.Context, method, path string, in, out any) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	err = c.do(ctx, method, path, token, in, out)
	if IsUnauthorized(err) {
		_ = c.Session.Clear()
	}
	return err
}

func (c *Client) token() (string, error) {
	sess, ok := c.Session.Load()
	if !ok {
		return "", ErrNoSession
	}
	return sess.Token, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
