// Package session gives every interactive user their own ledger. Ledgers are
// never shared between sessions.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/rpattn/kpiledger/internal/ledger"
	"github.com/rpattn/kpiledger/internal/repository"
	"github.com/rpattn/kpiledger/internal/schema/validator"

	"github.com/google/uuid"
)

// Options configures how new session ledgers are built and how long they live.
type Options struct {
	DataFile string
	Validate bool
	Clock    func() time.Time

	// IdleTimeout expires sessions that have not been used for this long.
	// Zero keeps sessions until the process exits.
	IdleTimeout time.Duration
	// MaxSessions caps live sessions; the least recently used one is evicted
	// to make room. Zero means no cap.
	MaxSessions int
}

// Manager owns the live sessions of the process.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	archive  repository.ChangeLogRepository
	opts     Options
	now      func() time.Time
}

// NewManager creates a manager archiving change log entries to archive.
func NewManager(archive repository.ChangeLogRepository, opts Options) *Manager {
	if archive == nil {
		archive = repository.NewMemoryChangeLogRepository()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		archive:  archive,
		opts:     opts,
		now:      now,
	}
}

// DataFile is the workbook sessions load from and save to.
func (m *Manager) DataFile() string {
	return m.opts.DataFile
}

// Archive exposes the repository new change log entries are copied to.
func (m *Manager) Archive() repository.ChangeLogRepository {
	return m.archive
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Get returns the session for id, creating it on first access. A new session
// is hydrated from the data file outside the manager lock; load problems are
// logged and leave the session empty.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) *Session {
	if s, ok := m.lookup(id); ok {
		return s
	}

	s := &Session{
		ID:      id,
		ledger:  ledger.New(m.ledgerOptions()...),
		archive: m.archive,
	}
	if m.opts.DataFile != "" {
		if err := s.ledger.Load(m.opts.DataFile); err != nil {
			var warning *ledger.LoadWarning
			if errors.As(err, &warning) {
				log.Printf("[session] %s: %v", id, warning)
			} else {
				log.Printf("[session] %s: load failed: %v", id, err)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request for the same id may have finished loading first.
	if existing, ok := m.sessions[id]; ok {
		existing.lastUsed = m.now()
		return existing
	}
	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		m.evictOldestLocked()
	}
	s.lastUsed = m.now()
	m.sessions[id] = s
	log.Printf("[session] created %s with %d rows", id, s.ledger.Len())
	return s
}

func (m *Manager) lookup(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.lastUsed = m.now()
	}
	return s, ok
}

func (m *Manager) evictOldestLocked() {
	var oldest *Session
	for _, s := range m.sessions {
		if oldest == nil || s.lastUsed.Before(oldest.lastUsed) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(m.sessions, oldest.ID)
		log.Printf("[session] evicted %s, limit of %d sessions reached", oldest.ID, m.opts.MaxSessions)
	}
}

// Drop forgets a session.
func (m *Manager) Drop(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Sweep drops sessions idle for longer than IdleTimeout and reports how many
// were dropped. Their change log entries have already been archived.
func (m *Manager) Sweep() int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.opts.IdleTimeout)
	dropped := 0
	for id, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
			dropped++
		}
	}
	if dropped > 0 {
		log.Printf("[session] expired %d idle sessions", dropped)
	}
	return dropped
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.opts.IdleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Manager) ledgerOptions() []ledger.Option {
	var opts []ledger.Option
	if m.opts.Clock != nil {
		opts = append(opts, ledger.WithClock(m.opts.Clock))
	}
	if m.opts.Validate {
		opts = append(opts, ledger.WithValidator(validator.ValidateRecords))
	}
	return opts
}

// Session is one user's ledger.
type Session struct {
	ID uuid.UUID

	mu       sync.Mutex
	ledger   *ledger.Ledger
	archive  repository.ChangeLogRepository
	archived int

	// lastUsed is guarded by the manager's mutex.
	lastUsed time.Time
}

// Do runs fn with exclusive access to the session's ledger, then copies any
// change log entries fn produced to the archive. Archive failures are logged
// and retried on the next call.
func (s *Session) Do(ctx context.Context, fn func(l *ledger.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := fn(s.ledger)
	s.flush(ctx)
	return err
}

func (s *Session) flush(ctx context.Context) {
	for _, entry := range s.ledger.HistorySince(s.archived) {
		if err := s.archive.Record(ctx, s.ID, entry); err != nil {
			log.Printf("[session] %s: archive change %s: %v", s.ID, entry.ID, err)
			return
		}
		s.archived++
	}
}
