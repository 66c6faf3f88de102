package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpattn/kpiledger/internal/session"

	"github.com/google/uuid"
)

func TestSessionMiddlewareKeepsValidHeader(t *testing.T) {
	id := uuid.New()
	var seen uuid.UUID
	handler := SessionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	req.Header.Set(session.HeaderName, id.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != id {
		t.Fatalf("expected session %s in context, got %s", id, seen)
	}
	if rec.Header().Get(session.HeaderName) != id.String() {
		t.Fatalf("expected session header to be echoed")
	}
}

func TestSessionMiddlewareCreatesSession(t *testing.T) {
	var seen uuid.UUID
	handler := SessionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	req.Header.Set(session.HeaderName, "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == uuid.Nil {
		t.Fatalf("expected a new session id")
	}
	if rec.Header().Get(session.HeaderName) != seen.String() {
		t.Fatalf("expected header %s, got %s", seen, rec.Header().Get(session.HeaderName))
	}
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status to pass through, got %d", rec.Code)
	}
}
