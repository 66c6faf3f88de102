package repository

import (
	"context"

	"github.com/rpattn/kpiledger/internal/domain"

	"github.com/google/uuid"
)

// ChangeLogRepository archives ledger change log entries per session. The
// in-memory ledger log stays the source of truth; the archive outlives the process.
type ChangeLogRepository interface {
	Record(ctx context.Context, sessionID uuid.UUID, entry domain.ChangeLogEntry) error
	List(ctx context.Context, sessionID uuid.UUID, limit int, offset int) ([]domain.ChangeLogEntry, error)
}
