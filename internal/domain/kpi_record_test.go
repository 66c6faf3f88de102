package domain

import (
	"strings"
	"testing"
	"time"
)

func TestRecordValuesFollowColumnOrder(t *testing.T) {
	record := KpiRecord{
		Perspective:     PerspectiveQuality,
		Number:          "Q-01",
		Name:            "Defect rate",
		PIC:             "Rina",
		BusinessUnit:    BusinessUnit2,
		MeasurementType: MeasurementLowerBetter,
		AggregationType: AggregationAverage,
		Month:           "Feb-25",
		YTDTarget:       1.5,
		YTDActual:       1.25,
	}

	values := record.Values()
	if len(values) != len(Columns) {
		t.Fatalf("expected %d values, got %d", len(Columns), len(values))
	}
	if values[0] != "Quality" || values[2] != "Defect rate" || values[7] != "Feb-25" {
		t.Fatalf("unexpected value order: %v", values)
	}
	if values[8] != 1.5 || values[9] != 1.25 {
		t.Fatalf("expected numeric cells last, got %v", values[8:])
	}
}

func TestRecordsEqual(t *testing.T) {
	a := []KpiRecord{DefaultRecord()}
	b := []KpiRecord{DefaultRecord()}
	if !RecordsEqual(a, b) {
		t.Fatalf("expected identical snapshots to be equal")
	}
	b[0].YTDActual = 1
	if RecordsEqual(a, b) {
		t.Fatalf("expected edited snapshot to differ")
	}
	if RecordsEqual(a, nil) {
		t.Fatalf("expected length mismatch to differ")
	}
}

func TestChangeLogEntryString(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	entry := NewChangeLogEntry(at, ChangeDeletedLastRow, "Revenue")
	got := entry.String()
	if got != "2025-02-03 04:05:06: Deleted last row - Revenue" {
		t.Fatalf("unexpected rendering %q", got)
	}
	if !strings.Contains(NewChangeLogEntry(at, ChangeAutoSavedToExcel, "x").String(), "Auto-saved to Excel") {
		t.Fatalf("expected save label")
	}
	if entry.ID == NewChangeLogEntry(at, ChangeDeletedLastRow, "Revenue").ID {
		t.Fatalf("expected entries to get distinct IDs")
	}
}
