// Package principal carries the authenticated subject through a request
// context.
package principal

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct {
	name string
}

var (
	userIDCtxKey       = &contextKey{"user_id"}
	refreshTokenCtxKey = &contextKey{"refresh_token"}
)

// WithUserID returns a copy of ctx carrying the verified subject id.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDCtxKey, id)
}

// UserIDFrom returns the subject id placed by an access or rotation gate.
func UserIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithRefreshToken stores the presented rotation credential so the renewal
// handler can compare it with the persisted one.
func WithRefreshToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, refreshTokenCtxKey, token)
}

func RefreshTokenFrom(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(refreshTokenCtxKey).(string)
	return tok, ok && tok != ""
}
