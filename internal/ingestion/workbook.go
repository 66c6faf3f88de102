package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rpattn/kpiledger/internal/domain"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the ledger is persisted to.
const SheetName = "KPI Data"

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not an xlsx workbook.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoHeader is returned when no non-blank row exists to act as the header.
	ErrNoHeader = errors.New("header row could not be detected")
)

type tableData struct {
	headers        []string
	rows           [][]string
	headerRowIndex int
}

// CheckFileName rejects uploads that are not xlsx workbooks.
func CheckFileName(fileName string) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext != ".xlsx" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return nil
}

// DecodeFile reads a workbook from disk. A missing file surfaces as fs.ErrNotExist.
func DecodeFile(path string) ([]domain.KpiRecord, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeWorkbook(bytes.NewReader(payload))
}

// DecodeWorkbook parses KPI rows from an xlsx workbook. Columns are matched by
// header name and string cells are taken as-is; only the numeric columns are converted.
func DecodeWorkbook(r io.Reader) ([]domain.KpiRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if name == SheetName {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	if len(rows) == 0 {
		return []domain.KpiRecord{}, nil
	}

	table, err := normalizeTable(rows)
	if err != nil {
		return nil, err
	}
	return buildRecords(table)
}

func normalizeTable(records [][]string) (tableData, error) {
	var headerRow []string
	var dataRows [][]string
	headerIndex := -1

	for idx, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}
		if headerRow == nil {
			headerRow = row
			headerIndex = idx
			continue
		}
		dataRows = append(dataRows, row)
	}

	if headerRow == nil {
		return tableData{}, ErrNoHeader
	}

	headers := make([]string, len(headerRow))
	for i, value := range headerRow {
		headers[i] = strings.TrimSpace(value)
	}

	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}

	return tableData{
		headers:        headers,
		rows:           dataRows,
		headerRowIndex: headerIndex,
	}, nil
}

func buildRecords(table tableData) ([]domain.KpiRecord, error) {
	index := make(map[string]int, len(table.headers))
	for i, header := range table.headers {
		if _, seen := index[header]; !seen {
			index[header] = i
		}
	}

	cell := func(row []string, column string) (string, bool) {
		i, ok := index[column]
		if !ok {
			return "", false
		}
		return row[i], true
	}

	records := make([]domain.KpiRecord, 0, len(table.rows))
	for rowIdx, row := range table.rows {
		rowNumber := table.headerRowIndex + rowIdx + 2 // 1-based, header included
		var record domain.KpiRecord

		if v, ok := cell(row, domain.ColumnPerspective); ok {
			record.Perspective = domain.Perspective(v)
		}
		if v, ok := cell(row, domain.ColumnNumber); ok {
			record.Number = v
		}
		if v, ok := cell(row, domain.ColumnName); ok {
			record.Name = v
		}
		if v, ok := cell(row, domain.ColumnPIC); ok {
			record.PIC = v
		}
		if v, ok := cell(row, domain.ColumnBusinessUnit); ok {
			record.BusinessUnit = domain.BusinessUnit(v)
		}
		if v, ok := cell(row, domain.ColumnMeasurementType); ok {
			record.MeasurementType = domain.MeasurementType(v)
		}
		if v, ok := cell(row, domain.ColumnAggregationType); ok {
			record.AggregationType = domain.AggregationType(v)
		}
		if v, ok := cell(row, domain.ColumnMonth); ok {
			record.Month = domain.Month(v)
		}

		var err error
		if v, ok := cell(row, domain.ColumnTarget); ok {
			if record.YTDTarget, err = parseNumber(v); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", rowNumber, domain.ColumnTarget, err)
			}
		}
		if v, ok := cell(row, domain.ColumnActual); ok {
			if record.YTDActual, err = parseNumber(v); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", rowNumber, domain.ColumnActual, err)
			}
		}

		records = append(records, record)
	}
	return records, nil
}

func parseNumber(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("number %q is not finite", raw)
	}
	return value, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
