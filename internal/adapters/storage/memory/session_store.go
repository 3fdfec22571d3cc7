package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/PabloGalante/twogether/internal/domain"
)

// SessionStore keeps sessions in a map guarded by one mutex, which also
// serializes UpdateSession per key.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.DateSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.DateSession),
	}
}

func (s *SessionStore) CreateSession(_ context.Context, session *domain.DateSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("%w: session %q", domain.ErrAlreadyExists, session.ID)
	}

	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id domain.SessionID) (*domain.DateSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %q", domain.ErrNotFound, id)
	}

	return sess.Clone(), nil
}

func (s *SessionStore) UpdateSession(ctx context.Context, id domain.SessionID, fn func(*domain.DateSession) error) (*domain.DateSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %q", domain.ErrNotFound, id)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Version = current.Version + 1

	s.sessions[id] = next
	return next.Clone(), nil
}

func (s *SessionStore) Close() error {
	return nil
}
