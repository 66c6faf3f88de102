package repository

import (
	"context"
	"sync"

	"github.com/rpattn/kpiledger/internal/domain"

	"github.com/google/uuid"
)

// MemoryChangeLogRepository keeps archived entries in process memory. It is
// used when no database is configured.
type MemoryChangeLogRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]domain.ChangeLogEntry
}

// NewMemoryChangeLogRepository creates an empty in-memory archive.
func NewMemoryChangeLogRepository() *MemoryChangeLogRepository {
	return &MemoryChangeLogRepository{entries: make(map[uuid.UUID][]domain.ChangeLogEntry)}
}

func (m *MemoryChangeLogRepository) Record(_ context.Context, sessionID uuid.UUID, entry domain.ChangeLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.entries[sessionID] {
		if existing.ID == entry.ID {
			return nil
		}
	}
	m.entries[sessionID] = append(m.entries[sessionID], entry)
	return nil
}

// List returns entries newest first.
func (m *MemoryChangeLogRepository) List(_ context.Context, sessionID uuid.UUID, limit int, offset int) ([]domain.ChangeLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit, offset = normalizePage(limit, offset)
	stored := m.entries[sessionID]

	out := []domain.ChangeLogEntry{}
	for i := len(stored) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

var _ ChangeLogRepository = (*MemoryChangeLogRepository)(nil)
