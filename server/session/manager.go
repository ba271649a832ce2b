package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/pose-coach/server/capture"
	"go.uber.org/zap"
)

// Manager owns the sessions of all connected clients.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	deps     Deps
	logger   *zap.Logger
	closed   bool
}

func NewManager(cfg Config, deps Deps, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
	}
}

// Create registers a new idle session for a client. The source factory
// overrides the default one from Deps when set.
func (m *Manager) Create(id string, sink Sink, newSource func() capture.Source) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunning, id)
	}

	deps := m.deps
	if newSource != nil {
		deps.NewSource = newSource
	}
	s := New(id, m.cfg, deps, sink)
	m.sessions[id] = s
	m.logger.Debug("Session created", zap.String("session_id", id))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove closes the session and forgets it. The camera is released before
// Remove returns.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.Debug("Session removed", zap.String("session_id", id))
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns a snapshot of every session sorted by id.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Shutdown closes every session and rejects new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()

	m.logger.Info("All sessions closed", zap.Int("count", len(sessions)))
}
