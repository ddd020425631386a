package client

import (
	"context"
	"sync"

	"github.com/eringen/lemystere/workflow"
)

// Session is the identity provider backed by GET /api/session. It stays
// unresolved until Resolve succeeds.
type Session struct {
	c  *Client
	mu sync.RWMutex
	id workflow.Identity
}

// NewSession returns an unresolved Session for c.
func NewSession(c *Client) *Session {
	return &Session{c: c}
}

// State returns the last resolved identity.
func (s *Session) State() workflow.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Resolve fetches the session from the server. On error the state is left
// as it was.
func (s *Session) Resolve(ctx context.Context) error {
	info, err := s.c.SessionInfo(ctx)
	if err != nil {
		return err
	}
	id := workflow.Identity{Phase: workflow.PhaseUnauthenticated}
	if info.User != nil {
		id = workflow.Identity{Phase: workflow.PhaseAuthenticated, User: info.User, IsAdmin: info.IsAdmin}
	}
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
	return nil
}
