package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/rpattn/kpiledger/internal/domain"
	"github.com/rpattn/kpiledger/internal/export"
	"github.com/rpattn/kpiledger/internal/ledger"
)

// handleExport streams the session's rows as a timestamped workbook download.
// It does not touch the data file or the change log.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	var records []domain.KpiRecord
	_ = s.Do(r.Context(), func(l *ledger.Ledger) error {
		records = l.Records()
		return nil
	})
	if len(records) == 0 {
		http.Error(w, "nothing to export", http.StatusNotFound)
		return
	}

	payload, err := export.EncodeWorkbook(records)
	if err != nil {
		http.Error(w, fmt.Sprintf("encode workbook: %v", err), http.StatusInternalServerError)
		return
	}

	filename := export.FileName(h.now())
	w.Header().Set("Content-Type", export.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		log.Printf("[export] write %s: %v", filename, err)
	}
}
