package auth

import (
	"context"
	"net/http"
	"strings"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID     string
	Email      string
	AdminClaim bool
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the identity stored in ctx, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// UserID returns the authenticated user ID in ctx, or "".
func UserID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// Authenticate validates the request's bearer token and returns a request
// whose context carries the caller's identity.
func (m *JWTManager) Authenticate(r *http.Request) (*http.Request, error) {
	token, err := BearerToken(r)
	if err != nil {
		return nil, err
	}
	id, err := m.Validate(token)
	if err != nil {
		return nil, err
	}
	return r.WithContext(WithIdentity(r.Context(), id)), nil
}
