// Package api serves a session's ledger as JSON over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/kpiledger/internal/domain"
	"github.com/rpattn/kpiledger/internal/ledger"
	"github.com/rpattn/kpiledger/internal/schema/validator"
	"github.com/rpattn/kpiledger/internal/session"
	"github.com/rpattn/kpiledger/internal/view"
)

const maxUploadSize = 32 << 20

// Handler routes the ledger endpoints. It expects the session middleware to
// have placed a session ID in the request context.
type Handler struct {
	sessions      *session.Manager
	recentChanges int
	now           func() time.Time
	mux           *http.ServeMux
}

// NewHandler builds the API around a session manager.
func NewHandler(sessions *session.Manager, recentChanges int) *Handler {
	if recentChanges <= 0 {
		recentChanges = view.DefaultRecentChanges
	}
	h := &Handler{
		sessions:      sessions,
		recentChanges: recentChanges,
		now:           time.Now,
		mux:           http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /api/records", h.handleList)
	h.mux.HandleFunc("POST /api/records", h.handleAdd)
	h.mux.HandleFunc("PUT /api/records", h.handleReplace)
	h.mux.HandleFunc("DELETE /api/records/last", h.handleDeleteLast)
	h.mux.HandleFunc("POST /api/save", h.handleSave)
	h.mux.HandleFunc("POST /api/reload", h.handleReload)
	h.mux.HandleFunc("GET /api/history", h.handleHistory)
	h.mux.HandleFunc("GET /api/view", h.handleView)
	h.mux.HandleFunc("POST /api/import", h.handleImport)
	h.mux.HandleFunc("GET /api/export", h.handleExport)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type snapshotResponse struct {
	Records  []domain.KpiRecord `json:"records"`
	RowCount int                `json:"rowCount"`
	Dirty    bool               `json:"dirty"`
}

type addResponse struct {
	snapshotResponse
	Added domain.KpiRecord `json:"added"`
}

type deleteResponse struct {
	snapshotResponse
	Removed domain.KpiRecord `json:"removed"`
}

type replacePayload struct {
	Records []domain.KpiRecord `json:"records"`
}

type replaceResponse struct {
	snapshotResponse
	Changed bool `json:"changed"`
}

type reloadResponse struct {
	snapshotResponse
	Warning string `json:"warning,omitempty"`
}

type historyResponse struct {
	Entries []domain.ChangeLogEntry `json:"entries"`
	Lines   []string                `json:"lines"`
}

type validationResponse struct {
	Error    string              `json:"error"`
	Problems []validator.Problem `json:"problems"`
}

func snapshot(l *ledger.Ledger) snapshotResponse {
	return snapshotResponse{Records: l.Records(), RowCount: l.Len(), Dirty: l.Dirty()}
}

func (h *Handler) sessionFor(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := session.SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "session required", http.StatusBadRequest)
		return nil, false
	}
	return h.sessions.Get(r.Context(), id), true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	var resp snapshotResponse
	_ = s.Do(r.Context(), func(l *ledger.Ledger) error {
		resp = snapshot(l)
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()

	// Fields present in the body override the defaults of a new row.
	record := domain.DefaultRecord()
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	var resp addResponse
	_ = s.Do(r.Context(), func(l *ledger.Ledger) error {
		resp.Added = l.AddRecord(record)
		resp.snapshotResponse = snapshot(l)
		return nil
	})
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()

	var payload replacePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if payload.Records == nil {
		payload.Records = []domain.KpiRecord{}
	}
	h.replace(w, r, s, payload.Records)
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request, s *session.Session, records []domain.KpiRecord) {
	var resp replaceResponse
	err := s.Do(r.Context(), func(l *ledger.Ledger) error {
		changed, err := l.ReplaceAll(records)
		if err != nil {
			return err
		}
		resp.Changed = changed
		resp.snapshotResponse = snapshot(l)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteLast(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	var resp deleteResponse
	err := s.Do(r.Context(), func(l *ledger.Ledger) error {
		removed, err := l.DeleteLast()
		if err != nil {
			return err
		}
		resp.Removed = removed
		resp.snapshotResponse = snapshot(l)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	var resp snapshotResponse
	err := s.Do(r.Context(), func(l *ledger.Ledger) error {
		if l.Len() == 0 {
			return ledger.ErrEmptyLedger
		}
		if err := l.Persist(h.sessions.DataFile()); err != nil {
			return err
		}
		resp = snapshot(l)
		return nil
	})
	if errors.Is(err, ledger.ErrEmptyLedger) {
		http.Error(w, "nothing to save", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	var resp reloadResponse
	_ = s.Do(r.Context(), func(l *ledger.Ledger) error {
		if err := l.Load(h.sessions.DataFile()); err != nil {
			resp.Warning = err.Error()
		}
		resp.snapshotResponse = snapshot(l)
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	limit := h.recentChanges
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var entries []domain.ChangeLogEntry
	if query.Get("archived") == "true" {
		// Archived entries outlive the session's in-memory ledger.
		var err error
		entries, err = h.sessions.Archive().List(r.Context(), s.ID, limit, 0)
		if err != nil {
			http.Error(w, fmt.Sprintf("list archived changes: %v", err), http.StatusInternalServerError)
			return
		}
	} else {
		_ = s.Do(r.Context(), func(l *ledger.Ledger) error {
			entries = l.RecentChanges(limit)
			return nil
		})
	}

	resp := historyResponse{Entries: entries, Lines: make([]string, len(entries))}
	for i, entry := range entries {
		resp.Lines[i] = entry.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	var model view.Model
	_ = s.Do(r.Context(), func(l *ledger.Ledger) error {
		model = view.Build(l.Records(), l.History(), view.Options{RecentChanges: h.recentChanges})
		return nil
	})
	writeJSON(w, http.StatusOK, model)
}

// writeError maps ledger and validation failures to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *validator.ValidationError
	var persistErr *ledger.PersistError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:    validationErr.Error(),
			Problems: validationErr.Problems,
		})
	case errors.Is(err, ledger.ErrEmptyLedger):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &persistErr):
		http.Error(w, persistErr.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeJSON encodes payload before touching the response so an encoding
// failure can still be reported as a 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
