package auth

import "errors"

// Errors returned by the session service.  Handlers map them onto HTTP
// status codes; anything else is an upstream failure (500).
var (
	ErrValidation   = errors.New("validation failed")         // 400
	ErrUnauthorized = errors.New("invalid email or password") // 401
	ErrMissingToken = errors.New("missing bearer token")      // 401
	ErrInvalidToken = errors.New("invalid or expired token")  // 401
	ErrNotFound     = errors.New("profile not found")         // 404
	ErrLogoutFailed = errors.New("logout failed")             // 500
	ErrUpstream     = errors.New("storage unavailable")       // 500
)
