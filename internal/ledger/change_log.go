package ledger

import "github.com/rpattn/kpiledger/internal/domain"

// ChangeLog is an append-only history of ledger changes. Entries are kept for
// the lifetime of the ledger.
type ChangeLog struct {
	entries []domain.ChangeLogEntry
}

// Append adds an entry to the end of the log.
func (c *ChangeLog) Append(entry domain.ChangeLogEntry) {
	c.entries = append(c.entries, entry)
}

// Len returns the number of entries ever appended.
func (c *ChangeLog) Len() int {
	return len(c.entries)
}

// All returns a copy of every entry, oldest first.
func (c *ChangeLog) All() []domain.ChangeLogEntry {
	out := make([]domain.ChangeLogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Since returns a copy of the entries appended after the first n.
func (c *ChangeLog) Since(n int) []domain.ChangeLogEntry {
	if n < 0 {
		n = 0
	}
	if n >= len(c.entries) {
		return []domain.ChangeLogEntry{}
	}
	out := make([]domain.ChangeLogEntry, len(c.entries)-n)
	copy(out, c.entries[n:])
	return out
}

// Recent returns up to k of the latest entries, newest first.
func (c *ChangeLog) Recent(k int) []domain.ChangeLogEntry {
	return RecentOf(c.entries, k)
}

// RecentOf returns up to k of the latest entries of history, newest first.
func RecentOf(history []domain.ChangeLogEntry, k int) []domain.ChangeLogEntry {
	if k <= 0 {
		return []domain.ChangeLogEntry{}
	}
	if k > len(history) {
		k = len(history)
	}
	out := make([]domain.ChangeLogEntry, 0, k)
	for i := len(history) - 1; i >= len(history)-k; i-- {
		out = append(out, history[i])
	}
	return out
}
