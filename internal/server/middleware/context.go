package middleware

import (
	"context"

	userdomain "workbench-api/internal/user/domain"
)

type contextKey struct{ name string }

var callerKey = contextKey{"caller"}

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, caller *userdomain.PublicUser) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFrom returns the caller attached by the auth middleware and true if set; otherwise nil, false.
func CallerFrom(ctx context.Context) (*userdomain.PublicUser, bool) {
	v, ok := ctx.Value(callerKey).(*userdomain.PublicUser)
	return v, ok && v != nil
}

// CallerID returns the caller's user id, or "" for anonymous requests.
func CallerID(ctx context.Context) string {
	if c, ok := CallerFrom(ctx); ok {
		return c.ID
	}
	return ""
}
