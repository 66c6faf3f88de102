package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rpattn/kpiledger/internal/domain"
	"github.com/rpattn/kpiledger/internal/ingestion"

	"github.com/xuri/excelize/v2"
)

const (
	// DefaultFileName is where the ledger is saved unless configured otherwise.
	DefaultFileName = "kpi_data_2025.xlsx"

	// MimeType is the content type of the generated workbook.
	MimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// numFmtTwoDecimals is the builtin "0.00" number format.
	numFmtTwoDecimals = 2
)

// FileName returns the timestamped name offered for manual downloads.
func FileName(now time.Time) string {
	return fmt.Sprintf("kpi_data_%s.xlsx", now.Format("20060102_150405"))
}

// EncodeWorkbook renders the records into an in-memory xlsx workbook with a
// single "KPI Data" sheet. Numeric cells keep full precision and display two decimals.
func EncodeWorkbook(records []domain.KpiRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, ingestion.SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(domain.Columns))
	for i, column := range domain.Columns {
		header[i] = column
	}
	if err := f.SetSheetRow(ingestion.SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("resolve row %d: %w", i+2, err)
		}
		values := record.Values()
		if err := f.SetSheetRow(ingestion.SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if len(records) > 0 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
		if err != nil {
			return nil, fmt.Errorf("create number style: %w", err)
		}
		targetCol := len(domain.Columns) - 1
		topLeft, err := excelize.CoordinatesToCellName(targetCol, 2)
		if err != nil {
			return nil, err
		}
		bottomRight, err := excelize.CoordinatesToCellName(targetCol+1, len(records)+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(ingestion.SheetName, topLeft, bottomRight, style); err != nil {
			return nil, fmt.Errorf("apply number style: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data next to path and promotes it with a rename, so a
// failed write leaves any previous file untouched.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("promote file: %w", err)
	}
	cleanup = false
	return nil
}
