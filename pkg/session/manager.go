// Package session holds the in-process registry of live conversations.
//
// A [Manager] is created once at startup, shared by reference, and closed
// at shutdown. Each [State] owns its message [History] and a processing
// lock that serializes work on that session.
package session

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/metrics"
)

var (
	// ErrNotFound is returned when a session ID is not registered.
	ErrNotFound = errors.New("session not found")

	// ErrExists is returned by Create for an ID already registered.
	ErrExists = errors.New("session already exists")

	// ErrClosed is returned after the Manager has been closed.
	ErrClosed = errors.New("session manager closed")
)

// Manager is a mutex-guarded registry of sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*State
	closed   bool

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*State),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logger.OrNop(m.logger)
	return m
}

// Create registers a new session. An empty id gets a generated UUID.
func (m *Manager) Create(id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := m.sessions[id]; ok {
		return nil, ErrExists
	}

	s := m.add(id)
	return s, nil
}

// Get returns a registered session.
func (m *Manager) Get(id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetOrCreate returns the session for id, creating it when absent. An empty
// id always creates a new session. The bool reports whether it was created.
func (m *Manager) GetOrCreate(id string) (*State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, ErrClosed
	}

	id = strings.TrimSpace(id)
	if id != "" {
		if s, ok := m.sessions[id]; ok {
			return s, false, nil
		}
	} else {
		id = uuid.NewString()
	}

	return m.add(id), true, nil
}

// add registers a session. Callers hold m.mu.
func (m *Manager) add(id string) *State {
	s := newState(id, m.now())
	m.sessions[id] = s
	metrics.SetActiveSessions(len(m.sessions))
	m.logger.Debug("session created", "session_id", id)
	return s
}

// Delete removes a session. In-flight work holding the session keeps its
// reference; the session is simply no longer reachable.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}

	delete(m.sessions, id)
	metrics.SetActiveSessions(len(m.sessions))
	m.logger.Debug("session deleted", "session_id", id)
	return nil
}

// List returns a snapshot of every session ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.Lock()
	states := make([]*State, 0, len(m.sessions))
	for _, s := range m.sessions {
		states = append(states, s)
	}
	m.mu.Unlock()

	infos := make([]Info, len(states))
	for i, s := range states {
		infos[i] = s.Info()
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}

// Len returns the number of sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close drops every session. Later calls return ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	n := len(m.sessions)
	m.sessions = nil
	metrics.SetActiveSessions(0)
	m.logger.Info("session manager closed", "sessions", n)
	return nil
}
