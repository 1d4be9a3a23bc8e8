package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flora/internal/domain/upload"
	"github.com/kailas-cloud/flora/internal/metrics"
)

// ManagerConfig holds session table settings.
type ManagerConfig struct {
	IdleTimeout time.Duration
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Manager keys sessions by id and tears down idle ones.
type Manager struct {
	searcher  Searcher
	previews  Previews
	validator *upload.Validator
	idle      time.Duration
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

// NewManager creates a session manager.
func NewManager(
	cfg ManagerConfig, searcher Searcher, previews Previews, validator *upload.Validator, logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		searcher:  searcher,
		previews:  previews,
		validator: validator,
		idle:      cfg.IdleTimeout,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		sessions:  make(map[string]*entry),
	}
}

// WithClock overrides the time source (tests).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithIDGenerator overrides session id generation (tests).
func (m *Manager) WithIDGenerator(fn func() string) *Manager {
	m.newID = fn
	return m
}

// GetOrCreate returns the session for id, creating a fresh one under a new
// id when it is unknown. created reports whether a new session was made.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[id]; ok && id != "" {
		e.lastSeen = m.now()
		return e.session, false
	}

	s = New(m.newID(), m.searcher, m.previews, m.validator, m.logger)
	if m.closed {
		// untracked and already closed after shutdown
		s.Close(context.Background())
		return s, true
	}
	m.sessions[s.ID()] = &entry{session: s, lastSeen: m.now()}
	metrics.SessionsActive.Inc()
	return s, true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout. It returns the number removed.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var expired []*Session
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close(ctx)
		metrics.SessionsActive.Dec()
	}
	if len(expired) > 0 {
		m.logger.Debug("Expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Close tears down every session and releases their previews.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	all := make([]*Session, 0, len(m.sessions))
	for id, e := range m.sessions {
		all = append(all, e.session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Close(ctx)
		metrics.SessionsActive.Dec()
	}
	m.logger.Info("Sessions closed", zap.Int("count", len(all)))
}
