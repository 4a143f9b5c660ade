package core

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// Bearer authentication failures
var (
	ErrMissingAuth   = errors.New("missing Authorization header")
	ErrMalformedAuth = errors.New("invalid Authorization header format")
	ErrInvalidToken  = errors.New("invalid bearer token")
)

// minTokenLength is the shortest token accepted without a warning
const minTokenLength = 16

var weakTokenFragments = []string{
	"password", "secret", "token", "admin", "test", "default", "12345",
}

// SecureCompareString compares in constant time for equal-length inputs
func SecureCompareString(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidateAuthToken rejects tokens that are empty, short or obviously guessable
func ValidateAuthToken(token string) error {
	if token == "" {
		return NewError(ErrInvalidParameter, "Authentication token cannot be empty").
			WithGuidance("Provide a valid authentication token.")
	}
	if len(token) < minTokenLength {
		return NewError(ErrInvalidParameter, "Authentication token is too short").
			WithGuidance("Use a token with at least 16 characters.")
	}

	lower := strings.ToLower(token)
	for _, weak := range weakTokenFragments {
		if strings.Contains(lower, weak) {
			return NewError(ErrInvalidParameter, "Authentication token appears to be weak").
				WithGuidance("Use a randomly generated authentication token.")
		}
	}
	return nil
}

// AuthenticateBearer checks an Authorization header against the expected token
func AuthenticateBearer(authHeader, expectedToken string) error {
	if authHeader == "" {
		return ErrMissingAuth
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return ErrMalformedAuth
	}

	if !SecureCompareString(token, expectedToken) {
		return ErrInvalidToken
	}
	return nil
}
