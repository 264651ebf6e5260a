// Package manager implements C4: the process-wide registry of sessions and
// the reconnection sub-task that runs against it. It is the one piece of
// the session runtime that owns the map GUI code ultimately talks to;
// internal/sshconn only knows how to produce a single Session, not how
// many of them are alive at once.
//
// Generalized from internal/terminal/session.go
// sessionRegistry (map + mutex + idle janitor), with the idle-timeout
// policy replaced by an explicit connect/get/remove/close contract.
package manager

import (
	"context"
	"sync"

	"github.com/iwoov/shellmaster/internal/hostkey"
	"github.com/iwoov/shellmaster/internal/logging"
	"github.com/iwoov/shellmaster/internal/sshconn"
)

var log = logging.For("manager")

// Manager is safe for concurrent use.
type Manager struct {
	store hostkey.Store

	mu       sync.Mutex
	sessions map[string]*sshconn.Session
}

// New creates a Manager backed by store for host-key decisions.
func New(store hostkey.Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*sshconn.Session),
	}
}

// Connect spawns a connection task (C2) and, on success, inserts the
// resulting session into the registry before the Connected event is
// delivered — a session is never observable here until auth has
// succeeded.
func (m *Manager) Connect(ctx context.Context, cfg sshconn.Config, sessionID string) sshconn.ConnectHandle {
	return sshconn.Connect(ctx, cfg, m.store, sessionID, func(s *sshconn.Session) {
		m.mu.Lock()
		m.sessions[sessionID] = s
		m.mu.Unlock()
	})
}

// Get returns the session registered under id, if any.
func (m *Manager) Get(id string) (*sshconn.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove deletes id from the registry without closing it. Callers that
// want both should use Close.
func (m *Manager) Remove(id string) (*sshconn.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return s, ok
}

// Close removes id from the registry, then closes the underlying SSH
// connection. The entry is deleted before the close is awaited, so no
// stale registry entry is ever observable while the close is pending.
func (m *Manager) Close(id string) error {
	session, ok := m.Remove(id)
	if !ok {
		return nil
	}
	err := session.Close()
	if err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("error closing session")
	} else {
		log.Info().Str("session_id", id).Msg("session closed")
	}
	return err
}

// Len reports the number of registered sessions, mostly useful for tests
// and the demo CLI's status output.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
