package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rpattn/kpiledger/internal/ingestion"
)

// handleImport replaces the session's rows with an uploaded workbook. The
// upload goes through the same path as an edited snapshot.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := ingestion.CheckFileName(header.Filename); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	records, err := ingestion.DecodeWorkbook(bytes.NewReader(data))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ingestion.ErrNoHeader) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}

	h.replace(w, r, s, records)
}
