package api

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/kpiledger/internal/domain"
	"github.com/rpattn/kpiledger/internal/export"
	"github.com/rpattn/kpiledger/internal/ingestion"
	"github.com/rpattn/kpiledger/internal/middleware"
	"github.com/rpattn/kpiledger/internal/repository"
	"github.com/rpattn/kpiledger/internal/session"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type testClient struct {
	t         *testing.T
	handler   http.Handler
	sessionID string
	dataFile  string
}

func newTestClient(t *testing.T, opts session.Options) *testClient {
	t.Helper()
	if opts.DataFile == "" {
		opts.DataFile = filepath.Join(t.TempDir(), "kpi.xlsx")
	}
	manager := session.NewManager(repository.NewMemoryChangeLogRepository(), opts)
	h := NewHandler(manager, 5)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC) }
	return &testClient{
		t:         t,
		handler:   middleware.SessionMiddleware(h),
		sessionID: uuid.NewString(),
		dataFile:  opts.DataFile,
	}
}

func (c *testClient) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(session.HeaderName, c.sessionID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func (c *testClient) doJSON(method, path string, payload any) *httptest.ResponseRecorder {
	c.t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("marshal payload: %v", err)
		}
	}
	return c.do(method, path, body, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func sampleRecord(number, name string, month domain.Month) domain.KpiRecord {
	r := domain.DefaultRecord()
	r.Number = number
	r.Name = name
	r.PIC = "Dina"
	r.Month = month
	r.YTDTarget = 100
	r.YTDActual = 95
	return r
}

func TestAddUsesDefaultsAndOverrides(t *testing.T) {
	c := newTestClient(t, session.Options{})

	rec := c.do(http.MethodPost, "/api/records", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[addResponse](t, rec)
	if resp.Added != domain.DefaultRecord() {
		t.Fatalf("expected default record, got %+v", resp.Added)
	}

	rec = c.doJSON(http.MethodPost, "/api/records", map[string]any{"name": "Revenue", "ytdTarget": 10})
	resp = decode[addResponse](t, rec)
	if resp.Added.Name != "Revenue" || resp.Added.YTDTarget != 10 || resp.Added.Perspective != domain.PerspectiveFinancial {
		t.Fatalf("unexpected added record %+v", resp.Added)
	}
	if resp.RowCount != 2 || !resp.Dirty {
		t.Fatalf("expected 2 dirty rows, got %d dirty=%v", resp.RowCount, resp.Dirty)
	}
}

func TestAddRejectsMalformedBody(t *testing.T) {
	c := newTestClient(t, session.Options{})
	rec := c.do(http.MethodPost, "/api/records", []byte("{"), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteLastOnEmptyLedger(t *testing.T) {
	c := newTestClient(t, session.Options{})
	rec := c.do(http.MethodDelete, "/api/records/last", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestDeleteLastLogsRemovedName(t *testing.T) {
	c := newTestClient(t, session.Options{})
	c.doJSON(http.MethodPost, "/api/records", map[string]any{"name": "Revenue"})
	c.doJSON(http.MethodPost, "/api/records", map[string]any{"name": "Margin"})

	rec := c.do(http.MethodDelete, "/api/records/last", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[deleteResponse](t, rec)
	if resp.Removed.Name != "Margin" || resp.RowCount != 1 {
		t.Fatalf("unexpected delete response %+v", resp)
	}

	history := decode[historyResponse](t, c.do(http.MethodGet, "/api/history", nil, ""))
	if len(history.Entries) != 1 || history.Entries[0].Detail != "Margin" {
		t.Fatalf("unexpected history %+v", history)
	}
	if !strings.Contains(history.Lines[0], "Deleted last row - Margin") {
		t.Fatalf("unexpected history line %q", history.Lines[0])
	}

	archived := decode[historyResponse](t, c.do(http.MethodGet, "/api/history?archived=true", nil, ""))
	if len(archived.Entries) != 1 || archived.Entries[0].ID != history.Entries[0].ID {
		t.Fatalf("expected entry to be archived, got %+v", archived.Entries)
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	c := newTestClient(t, session.Options{})
	if rec := c.do(http.MethodGet, "/api/history?limit=-1", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReplaceReportsChange(t *testing.T) {
	c := newTestClient(t, session.Options{})
	records := []domain.KpiRecord{sampleRecord("1", "Revenue", "Jan-25")}

	resp := decode[replaceResponse](t, c.doJSON(http.MethodPut, "/api/records", replacePayload{Records: records}))
	if !resp.Changed || resp.RowCount != 1 {
		t.Fatalf("expected change to 1 row, got %+v", resp)
	}
	resp = decode[replaceResponse](t, c.doJSON(http.MethodPut, "/api/records", replacePayload{Records: records}))
	if resp.Changed {
		t.Fatalf("expected identical snapshot to report no change")
	}
}

func TestReplaceWithValidationFailure(t *testing.T) {
	c := newTestClient(t, session.Options{Validate: true})
	bad := sampleRecord("1", "Revenue", "Jan-25")
	bad.BusinessUnit = "BU9"

	rec := c.doJSON(http.MethodPut, "/api/records", replacePayload{Records: []domain.KpiRecord{bad}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	resp := decode[validationResponse](t, rec)
	if len(resp.Problems) == 0 {
		t.Fatalf("expected validation problems in body")
	}

	list := decode[snapshotResponse](t, c.do(http.MethodGet, "/api/records", nil, ""))
	if list.RowCount != 0 {
		t.Fatalf("expected ledger unchanged, got %d rows", list.RowCount)
	}
}

func TestSaveAndReload(t *testing.T) {
	c := newTestClient(t, session.Options{})

	if rec := c.do(http.MethodPost, "/api/save", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 saving empty ledger, got %d", rec.Code)
	}

	c.doJSON(http.MethodPut, "/api/records", replacePayload{Records: []domain.KpiRecord{
		sampleRecord("1", "Revenue", "Jan-25"),
		sampleRecord("1", "Revenue", "Feb-25"),
	}})
	rec := c.do(http.MethodPost, "/api/save", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if decode[snapshotResponse](t, rec).Dirty {
		t.Fatalf("expected clean ledger after save")
	}
	if _, err := os.Stat(c.dataFile); err != nil {
		t.Fatalf("expected data file to exist: %v", err)
	}

	c.do(http.MethodDelete, "/api/records/last", nil, "")
	reload := decode[reloadResponse](t, c.do(http.MethodPost, "/api/reload", nil, ""))
	if reload.RowCount != 2 || reload.Warning != "" {
		t.Fatalf("expected 2 rows reloaded without warning, got %+v", reload)
	}
}

func TestSaveFailureReturns500(t *testing.T) {
	c := newTestClient(t, session.Options{DataFile: filepath.Join(t.TempDir(), "missing", "kpi.xlsx")})
	c.do(http.MethodPost, "/api/records", nil, "")
	if rec := c.do(http.MethodPost, "/api/save", nil, ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	list := decode[snapshotResponse](t, c.do(http.MethodGet, "/api/records", nil, ""))
	if list.RowCount != 1 || !list.Dirty {
		t.Fatalf("expected ledger untouched after failed save, got %+v", list)
	}
}

func TestReloadReportsWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi.xlsx")
	c := newTestClient(t, session.Options{DataFile: path})
	c.do(http.MethodGet, "/api/records", nil, "")

	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	reload := decode[reloadResponse](t, c.do(http.MethodPost, "/api/reload", nil, ""))
	if reload.Warning == "" {
		t.Fatalf("expected a load warning")
	}
}

func TestSessionsDoNotShareRows(t *testing.T) {
	c := newTestClient(t, session.Options{})
	c.do(http.MethodPost, "/api/records", nil, "")

	other := *c
	other.sessionID = uuid.NewString()
	list := decode[snapshotResponse](t, other.do(http.MethodGet, "/api/records", nil, ""))
	if list.RowCount != 0 {
		t.Fatalf("expected a new session to start empty, got %d rows", list.RowCount)
	}
}

func TestViewModel(t *testing.T) {
	c := newTestClient(t, session.Options{})
	jan := sampleRecord("1", "Revenue", "Jan-25")
	feb := sampleRecord("1", "Revenue", "Feb-25")
	feb.YTDActual = 110
	c.doJSON(http.MethodPut, "/api/records", replacePayload{Records: []domain.KpiRecord{jan, feb}})

	rec := c.do(http.MethodGet, "/api/view", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var model struct {
		RowCount   int `json:"rowCount"`
		Scorecards []struct {
			Month string `json:"month"`
			Arrow string `json:"arrow"`
		} `json:"scorecards"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &model); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if model.RowCount != 2 || len(model.Scorecards) != 1 {
		t.Fatalf("unexpected view %+v", model)
	}
	if model.Scorecards[0].Month != "Feb-25" || model.Scorecards[0].Arrow != "▲" {
		t.Fatalf("unexpected scorecard %+v", model.Scorecards[0])
	}
}

func multipartUpload(t *testing.T, filename string, data []byte) ([]byte, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body.Bytes(), writer.FormDataContentType()
}

func TestImportReplacesSnapshot(t *testing.T) {
	c := newTestClient(t, session.Options{})
	payload, err := export.EncodeWorkbook([]domain.KpiRecord{
		sampleRecord("1", "Revenue", "Jan-25"),
		sampleRecord("2", "Margin", "Jan-25"),
	})
	if err != nil {
		t.Fatalf("encode workbook: %v", err)
	}

	body, contentType := multipartUpload(t, "upload.xlsx", payload)
	rec := c.do(http.MethodPost, "/api/import", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[replaceResponse](t, rec)
	if !resp.Changed || resp.RowCount != 2 || resp.Records[1].Name != "Margin" {
		t.Fatalf("unexpected import response %+v", resp)
	}
}

func TestImportRejectsOtherFormats(t *testing.T) {
	c := newTestClient(t, session.Options{})
	body, contentType := multipartUpload(t, "upload.csv", []byte("a,b\n1,2\n"))
	rec := c.do(http.MethodPost, "/api/import", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ingestion.ErrUnsupportedFormat.Error()) {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestImportRequiresFile(t *testing.T) {
	c := newTestClient(t, session.Options{})
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.Close()
	rec := c.do(http.MethodPost, "/api/import", body.Bytes(), writer.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExportDownload(t *testing.T) {
	c := newTestClient(t, session.Options{})
	if rec := c.do(http.MethodGet, "/api/export", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty ledger, got %d", rec.Code)
	}

	c.doJSON(http.MethodPut, "/api/records", replacePayload{Records: []domain.KpiRecord{sampleRecord("1", "Revenue", "Jan-25")}})
	rec := c.do(http.MethodGet, "/api/export", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "kpi_data_20250601_083000.xlsx") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if rec.Header().Get("Content-Type") != export.MimeType {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}

	records, err := ingestion.DecodeWorkbook(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode download: %v", err)
	}
	if len(records) != 1 || records[0].Name != "Revenue" {
		t.Fatalf("unexpected downloaded rows %+v", records)
	}

	history := decode[historyResponse](t, c.do(http.MethodGet, "/api/history", nil, ""))
	if len(history.Entries) != 0 {
		t.Fatalf("expected export to leave the change log alone, got %d entries", len(history.Entries))
	}
}

func writeRawWorkbook(t *testing.T, path string, row []any) {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	header := make([]any, len(domain.Columns))
	for i, column := range domain.Columns {
		header[i] = column
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &row); err != nil {
		t.Fatalf("write row: %v", err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
}

func TestNonFiniteWorkbookCellsDoNotBreakReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi.xlsx")
	writeRawWorkbook(t, path, []any{"Financial", "1", "Revenue", "Dina", "BU1", "Higher better", "SUM", "Jan-25", "NaN", "Inf"})
	c := newTestClient(t, session.Options{DataFile: path})

	for _, endpoint := range []string{"/api/records", "/api/view"} {
		rec := c.do(http.MethodGet, endpoint, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 from %s, got %d", endpoint, rec.Code)
		}
		if rec.Body.Len() == 0 {
			t.Fatalf("expected a JSON body from %s", endpoint)
		}
	}
	list := decode[snapshotResponse](t, c.do(http.MethodGet, "/api/records", nil, ""))
	if list.RowCount != 0 {
		t.Fatalf("expected the unreadable file to be skipped, got %d rows", list.RowCount)
	}

	reload := decode[reloadResponse](t, c.do(http.MethodPost, "/api/reload", nil, ""))
	if !strings.Contains(reload.Warning, "not finite") {
		t.Fatalf("expected a load warning naming the bad number, got %q", reload.Warning)
	}
}

func TestWriteJSONReportsEncodingFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, snapshotResponse{Records: []domain.KpiRecord{{YTDTarget: math.NaN()}}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for an unencodable payload, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") == "application/json" {
		t.Fatalf("expected no JSON content type on failure")
	}
}

func TestRequestWithoutSession(t *testing.T) {
	manager := session.NewManager(nil, session.Options{})
	rec := httptest.NewRecorder()
	NewHandler(manager, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session middleware, got %d", rec.Code)
	}
}
