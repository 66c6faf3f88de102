// Package ledger holds the editable KPI table of one session together with its
// append-only change log.
//
// A Ledger is owned by its caller and is not safe for concurrent use; callers
// that share one across goroutines must serialize access themselves.
package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/rpattn/kpiledger/internal/domain"
	"github.com/rpattn/kpiledger/internal/export"
	"github.com/rpattn/kpiledger/internal/ingestion"
)

// Validator checks a full snapshot before it replaces the ledger's rows.
type Validator func(records []domain.KpiRecord) error

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used to stamp change log entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithValidator enables validation of edited and loaded snapshots. Without it
// the ledger accepts any values.
func WithValidator(v Validator) Option {
	return func(l *Ledger) {
		l.validate = v
	}
}

// Ledger is an ordered table of KPI records. Row identity is positional:
// removing a row renumbers the rows after it.
type Ledger struct {
	records  []domain.KpiRecord
	changes  ChangeLog
	dirty    bool
	now      func() time.Time
	validate Validator
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		records: []domain.KpiRecord{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ComputeMetric compares a current value with its prior-period value.
func ComputeMetric(current, prior float64) domain.ComparisonMetric {
	return domain.ComputeMetric(current, prior)
}

// Records returns a copy of the rows in display order.
func (l *Ledger) Records() []domain.KpiRecord {
	out := make([]domain.KpiRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Dirty reports whether the ledger has changes that were not persisted.
func (l *Ledger) Dirty() bool {
	return l.dirty
}

// History returns every change log entry, oldest first.
func (l *Ledger) History() []domain.ChangeLogEntry {
	return l.changes.All()
}

// HistorySince returns the change log entries appended after the first n.
func (l *Ledger) HistorySince(n int) []domain.ChangeLogEntry {
	return l.changes.Since(n)
}

// HistoryLen returns the number of change log entries.
func (l *Ledger) HistoryLen() int {
	return l.changes.Len()
}

// RecentChanges returns up to k of the latest change log entries, newest first.
func (l *Ledger) RecentChanges(k int) []domain.ChangeLogEntry {
	return l.changes.Recent(k)
}

// AddRecord appends a row populated with defaults. Additions are not logged.
func (l *Ledger) AddRecord(defaults domain.KpiRecord) domain.KpiRecord {
	l.records = append(l.records, defaults)
	l.dirty = true
	return defaults
}

// DeleteLast removes the final row and logs its KPI name.
func (l *Ledger) DeleteLast() (domain.KpiRecord, error) {
	if len(l.records) == 0 {
		return domain.KpiRecord{}, ErrEmptyLedger
	}
	last := len(l.records) - 1
	removed := l.records[last]
	l.records = l.records[:last]
	l.dirty = true
	l.changes.Append(domain.NewChangeLogEntry(l.now(), domain.ChangeDeletedLastRow, removed.Name))
	return removed, nil
}

// ReplaceAll swaps in a full snapshot produced by an external editor. changed
// reports whether the snapshot differs from the current rows. Replacements are
// not logged.
func (l *Ledger) ReplaceAll(records []domain.KpiRecord) (changed bool, err error) {
	if l.validate != nil {
		if err := l.validate(records); err != nil {
			return false, err
		}
	}
	if domain.RecordsEqual(l.records, records) {
		return false, nil
	}
	next := make([]domain.KpiRecord, len(records))
	copy(next, records)
	l.records = next
	l.dirty = true
	return true, nil
}

// Persist writes every row to the workbook at target. The workbook is rendered
// in memory first; a failed write leaves both the previous file and the ledger untouched.
func (l *Ledger) Persist(target string) error {
	payload, err := export.EncodeWorkbook(l.records)
	if err != nil {
		return &PersistError{Target: target, Err: err}
	}
	if err := export.WriteFileAtomic(target, payload); err != nil {
		return &PersistError{Target: target, Err: err}
	}

	l.dirty = false
	detail := fmt.Sprintf("Saved %d rows to %s", len(l.records), target)
	l.changes.Append(domain.NewChangeLogEntry(l.now(), domain.ChangeAutoSavedToExcel, detail))
	log.Printf("[ledger] %s", detail)
	return nil
}

// Load replaces the rows with those read from source. A missing file is not an
// error and leaves the ledger as it is; an unreadable one yields a *LoadWarning
// and also leaves the ledger as it is.
func (l *Ledger) Load(source string) error {
	records, err := ingestion.DecodeFile(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &LoadWarning{Source: source, Err: err}
	}
	if l.validate != nil {
		if err := l.validate(records); err != nil {
			return &LoadWarning{Source: source, Err: err}
		}
	}
	l.records = records
	l.dirty = false
	return nil
}
