package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager keeps sessions in memory. Sessions do not survive a restart; the
// user simply logs in again.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Create starts a session for the given name and email.
func (m *Manager) Create(name, email string) Session {
	s := Session{
		Token:     uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: m.now().UTC(),
	}
	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()
	return s
}

// Get returns the session for token, if any.
func (m *Manager) Get(token string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	return s, ok
}

func (m *Manager) Delete(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// Cleanup removes sessions older than maxAge and returns how many were removed.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().UTC().Add(-maxAge)
	removed := 0
	for token, s := range m.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
