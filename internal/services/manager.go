package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"budget/internal/log"
	"budget/internal/reconcile"
	"budget/internal/session"
)

// ErrNoSession is returned for users without an open session.
var ErrNoSession = errors.New("no open session")

// Manager owns the open sessions of the process, one per user.
type Manager struct {
	syncer reconcile.Syncer
	cfg    session.Config
	logger *log.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Session
	opening  singleflight.Group
}

func NewManager(syncer reconcile.Syncer, cfg session.Config, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	return &Manager{
		syncer:   syncer,
		cfg:      cfg,
		logger:   logger.WithComponent(log.ComponentSession),
		sessions: make(map[string]*session.Session),
	}
}

// Open returns the user's session, loading it on first use. Concurrent calls
// for the same user share one load. A failed load leaves no session behind.
func (m *Manager) Open(ctx context.Context, userID string) (*session.Session, error) {
	if s, err := m.Get(userID); err == nil {
		return s, nil
	}
	v, err, shared := m.opening.Do(userID, func() (any, error) {
		if s, err := m.Get(userID); err == nil {
			return s, nil
		}
		s, err := session.Open(ctx, userID, m.syncer, m.cfg)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.sessions[userID] = s
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "Session opened",
			log.FieldUserID, userID,
			"months", len(s.Months()))
		return s, nil
	})
	if err != nil {
		m.logger.WarnContext(ctx, "Session open failed",
			log.FieldUserID, userID,
			log.FieldError, err,
			"shared", shared)
		return nil, fmt.Errorf("open session for %s: %w", userID, err)
	}
	return v.(*session.Session), nil
}

func (m *Manager) Get(userID string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// Close flushes and tears down the user's session.
func (m *Manager) Close(userID string) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if !ok {
		return ErrNoSession
	}
	s.Close()
	return nil
}

// CloseAll tears down every session; used on shutdown.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session.Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return len(sessions)
}

// Users lists the users with an open session, sorted.
func (m *Manager) Users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]string, 0, len(m.sessions))
	for u := range m.sessions {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// RetryAll asks every session to reschedule failed or unsaved months and
// returns the number of saves scheduled.
func (m *Manager) RetryAll() int {
	m.mu.RLock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	n := 0
	for _, s := range sessions {
		n += s.RetryFailed()
	}
	return n
}
