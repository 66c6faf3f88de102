package session

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

// HeaderName carries the session identifier on HTTP requests and responses.
const HeaderName = "X-Session-ID"

// ContextWithSessionID returns a new context that carries the caller's session.
func ContextWithSessionID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext retrieves the session from the context, if any.
func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(sessionIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
