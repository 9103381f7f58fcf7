package preview

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maildeck/maildeck/internal/metrics"
	"github.com/maildeck/maildeck/internal/model"
	"github.com/maildeck/maildeck/internal/session"
)

// ErrSessionNotFound is returned for unknown or already closed sessions.
var ErrSessionNotFound = errors.New("preview session not found")

const defaultIdleTimeout = 30 * time.Minute

// Manager owns all open preview sessions and reaps the ones nobody has
// touched for a while.
type Manager struct {
	renderer    Renderer
	logger      *slog.Logger
	idleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewManager creates a session manager and starts its cleanup loop.
// idleTimeout zero means 30 minutes.
func NewManager(renderer Renderer, idleTimeout time.Duration, logger *slog.Logger) *Manager {
	if idleTimeout == 0 {
		idleTimeout = defaultIdleTimeout
	}
	m := &Manager{
		renderer:    renderer,
		logger:      logger,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Session),
		stopCleanup: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Open starts a preview session for a template. The session seeds its
// sample values from the template's variable list and immediately
// initiates the first render.
func (m *Manager) Open(sctx session.Context, tmpl model.Template) (*Session, error) {
	if err := sctx.RequireApp(); err != nil {
		return nil, err
	}

	s := newSession(uuid.New().String(), sctx, tmpl, m.renderer, m.logger)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	metrics.SessionOpened()
	m.logger.Debug("preview session opened", "session_id", s.id, "template_id", tmpl.ID)
	return s, nil
}

// Get looks up an open session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close tears down one session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	metrics.SessionClosed()
	m.logger.Debug("preview session closed", "session_id", id)
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop terminates the cleanup loop and closes every open session.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.SessionClosed()
	}
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.reapIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) reapIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		metrics.SessionClosed()
		m.logger.Debug("preview session expired", "session_id", s.id)
	}
}
