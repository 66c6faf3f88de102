package ledger

import (
	"errors"
	"fmt"
)

// ErrEmptyLedger is returned when removing a row from a ledger with no rows.
var ErrEmptyLedger = errors.New("ledger has no records")

// PersistError wraps a failure to write the ledger to its workbook.
type PersistError struct {
	Target string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist ledger to %s: %v", e.Target, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// LoadWarning reports a workbook that exists but could not be loaded. The
// in-memory ledger is left as it was.
type LoadWarning struct {
	Source string
	Err    error
}

func (w *LoadWarning) Error() string {
	return fmt.Sprintf("could not read %s: %v", w.Source, w.Err)
}

func (w *LoadWarning) Unwrap() error { return w.Err }
