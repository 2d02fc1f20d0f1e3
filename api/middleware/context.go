package middleware

import (
	"context"

	"github.com/watchfi/storefront/internal/session"
)

type (
	adminKey   struct{}
	sessionKey struct{}
)

// adminIdentity is what AdminAuth learned from a verified bearer token.
type adminIdentity struct {
	username string
	accessID string
}

func fromContext[T any](ctx context.Context, key any) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func withValue(ctx context.Context, key, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// WithAdmin marks the request as made by a verified console operator.
func WithAdmin(ctx context.Context, username, accessID string) context.Context {
	return withValue(ctx, adminKey{}, adminIdentity{username: username, accessID: accessID})
}

// AdminFromContext returns the operator username, or "" on shopper routes.
func AdminFromContext(ctx context.Context) string {
	id, _ := fromContext[adminIdentity](ctx, adminKey{})
	return id.username
}

func AccessIDFromContext(ctx context.Context) string {
	id, _ := fromContext[adminIdentity](ctx, adminKey{})
	return id.accessID
}

func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return withValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the shopper session resolved by RequireSession.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := fromContext[*session.Session](ctx, sessionKey{})
	return sess
}

func SessionIDFromContext(ctx context.Context) string {
	if sess := SessionFromContext(ctx); sess != nil {
		return sess.ID
	}
	return ""
}
