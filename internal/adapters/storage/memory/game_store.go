package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/PabloGalante/twogether/internal/domain"
)

type GameStore struct {
	mu        sync.RWMutex
	games     map[domain.GameID]*domain.IcebreakerGame
	bySession map[domain.SessionID]domain.GameID
}

func NewGameStore() *GameStore {
	return &GameStore{
		games:     make(map[domain.GameID]*domain.IcebreakerGame),
		bySession: make(map[domain.SessionID]domain.GameID),
	}
}

func (s *GameStore) CreateGame(_ context.Context, game *domain.IcebreakerGame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[game.ID]; exists {
		return fmt.Errorf("%w: game %q", domain.ErrAlreadyExists, game.ID)
	}
	if _, exists := s.bySession[game.SessionID]; exists {
		return fmt.Errorf("%w: game for session %q", domain.ErrAlreadyExists, game.SessionID)
	}

	s.games[game.ID] = game.Clone()
	s.bySession[game.SessionID] = game.ID
	return nil
}

func (s *GameStore) GetGame(_ context.Context, id domain.GameID) (*domain.IcebreakerGame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: game %q", domain.ErrNotFound, id)
	}
	return g.Clone(), nil
}

func (s *GameStore) GetGameBySession(_ context.Context, sessionID domain.SessionID) (*domain.IcebreakerGame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySession[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: no game for session %q", domain.ErrNotFound, sessionID)
	}
	return s.games[id].Clone(), nil
}

func (s *GameStore) UpdateGame(ctx context.Context, id domain.GameID, fn func(*domain.IcebreakerGame) error) (*domain.IcebreakerGame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: game %q", domain.ErrNotFound, id)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.SessionID = current.SessionID
	next.Version = current.Version + 1

	s.games[id] = next
	return next.Clone(), nil
}

func (s *GameStore) Close() error {
	return nil
}
