package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// TokenBytes is the amount of randomness in a bearer token.
const TokenBytes = 32

// NewToken returns an opaque bearer token: TokenBytes from crypto/rand,
// base64url encoded without padding (43 characters of [A-Za-z0-9_-]).
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hex digest stored in place of the token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ParseBearer extracts the token from an Authorization header of the form
// "Bearer <token>".  An absent header, another scheme or an empty token
// yields ErrMissingToken.
func ParseBearer(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrMissingToken
	}
	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", ErrMissingToken
	}
	return raw, nil
}
