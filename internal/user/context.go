package user

import "context"

type contextKey string

// userContextKey holds the authenticated, sanitized user set by the auth middleware
const userContextKey contextKey = "user"

// NewContext returns a context carrying the authenticated user
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// FromContext extracts the authenticated user from the request context
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey).(*User)
	return u, ok
}
