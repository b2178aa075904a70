// Package auth provides bearer token checks for the API.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenQueryParam carries the token for clients that cannot set headers,
// such as EventSource.
const TokenQueryParam = "token"

// ValidateToken performs constant-time comparison of the provided token
// against the expected token to prevent timing attacks.
func ValidateToken(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// RequestToken extracts the token from the Authorization header, falling
// back to the token query parameter.
func RequestToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get(TokenQueryParam)
}

// Authorized reports whether r carries the expected token. An empty
// expected token disables the check.
func Authorized(r *http.Request, expected string) bool {
	if expected == "" {
		return true
	}
	token := RequestToken(r)
	if token == "" {
		return false
	}
	return ValidateToken(token, expected)
}
