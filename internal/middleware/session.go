package middleware

import (
	"net/http"

	"github.com/rpattn/kpiledger/internal/session"

	"github.com/google/uuid"
)

// SessionMiddleware attaches the caller's session ID to the request context.
// Requests without a valid X-Session-ID header start a new session; the ID in
// use is always echoed back on the response.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(session.HeaderName))
		if err != nil || id == uuid.Nil {
			id = uuid.New()
		}
		w.Header().Set(session.HeaderName, id.String())

		ctx := session.ContextWithSessionID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
