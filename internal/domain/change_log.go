package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is how change log timestamps are displayed.
const TimestampLayout = "2006-01-02 15:04:05"

// ChangeAction identifies what kind of change a log entry records.
type ChangeAction string

const (
	ChangeDeletedLastRow   ChangeAction = "DeletedLastRow"
	ChangeAutoSavedToExcel ChangeAction = "AutoSavedToExcel"
)

// Label returns the human readable name of the action.
func (a ChangeAction) Label() string {
	switch a {
	case ChangeDeletedLastRow:
		return "Deleted last row"
	case ChangeAutoSavedToExcel:
		return "Auto-saved to Excel"
	default:
		return string(a)
	}
}

// ChangeLogEntry is one immutable line of the ledger's change history.
type ChangeLogEntry struct {
	ID        uuid.UUID    `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Action    ChangeAction `json:"action"`
	Detail    string       `json:"detail"`
}

// NewChangeLogEntry stamps a new entry with a fresh ID.
func NewChangeLogEntry(at time.Time, action ChangeAction, detail string) ChangeLogEntry {
	return ChangeLogEntry{
		ID:        uuid.New(),
		Timestamp: at,
		Action:    action,
		Detail:    detail,
	}
}

func (e ChangeLogEntry) String() string {
	return fmt.Sprintf("%s: %s - %s", e.Timestamp.Format(TimestampLayout), e.Action.Label(), e.Detail)
}
