package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/kpiledger/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type changeLogRepository struct {
	pool *pgxpool.Pool
}

// NewChangeLogRepository wires a repository backed by pgxpool.
func NewChangeLogRepository(pool *pgxpool.Pool) ChangeLogRepository {
	return &changeLogRepository{pool: pool}
}

func (r *changeLogRepository) Record(ctx context.Context, sessionID uuid.UUID, entry domain.ChangeLogEntry) error {
	if r.pool == nil {
		return fmt.Errorf("change log repository not initialized")
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO change_log_entries (id, session_id, recorded_at, action, detail)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		entry.ID,
		sessionID,
		entry.Timestamp,
		string(entry.Action),
		entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to record change log entry: %w", err)
	}

	return nil
}

func (r *changeLogRepository) List(ctx context.Context, sessionID uuid.UUID, limit int, offset int) ([]domain.ChangeLogEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("change log repository not initialized")
	}

	limit, offset = normalizePage(limit, offset)

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, recorded_at, action, detail
		 FROM change_log_entries
		 WHERE session_id = $1
		 ORDER BY recorded_at DESC, seq DESC
		 LIMIT $2 OFFSET $3`,
		sessionID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list change log entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.ChangeLogEntry{}
	for rows.Next() {
		var (
			entry      domain.ChangeLogEntry
			action     string
			recordedAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(&entry.ID, &recordedAt, &action, &entry.Detail); scanErr != nil {
			return nil, fmt.Errorf("failed to scan change log entry: %w", scanErr)
		}
		entry.Action = domain.ChangeAction(action)
		if recordedAt.Valid {
			entry.Timestamp = recordedAt.Time
		}
		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate change log entries: %w", rowsErr)
	}

	return entries, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
