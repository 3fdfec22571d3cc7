package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/twogether/internal/adapters/storage/record"
	"github.com/PabloGalante/twogether/internal/domain"
)

// Store implements domain.SessionStore and domain.GameStore on Firestore.
// Updates run inside transactions, which Firestore retries on contention.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (TWOGETHER_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) gamesCol() *firestore.CollectionRef {
	return s.client.Collection("icebreaker_games")
}

func (s *Store) gameDoc(id domain.GameID) *firestore.DocumentRef {
	return s.gamesCol().Doc(string(id))
}

func mapErr(op string, err error, what string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, what)
	}
	return fmt.Errorf("firestore %s: %w", op, err)
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.DateSession) error {
	_, err := s.sessionDoc(session.ID).Create(ctx, record.FromSession(session))
	if err != nil {
		return mapErr("CreateSession", err, "session "+string(session.ID))
	}
	return nil
}

func decodeSession(snap *firestore.DocumentSnapshot) (*domain.DateSession, error) {
	var rec record.Session
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("firestore decode session: %w", err)
	}
	return rec.ToDomain()
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.DateSession, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		return nil, mapErr("GetSession", err, "session "+string(id))
	}
	return decodeSession(snap)
}

func (s *Store) UpdateSession(ctx context.Context, id domain.SessionID, fn func(*domain.DateSession) error) (*domain.DateSession, error) {
	var out *domain.DateSession
	ref := s.sessionDoc(id)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := decodeSession(snap)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.ID = current.ID
		next.Version = current.Version + 1

		if err := tx.Set(ref, record.FromSession(next)); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, mapErr("UpdateSession", err, "session "+string(id))
		}
		return nil, err
	}
	return out, nil
}

// ─────────────────────────────────────────
// GameStore implementation
// ─────────────────────────────────────────

// CreateGame checks the one-game-per-session rule and writes the game in the
// same transaction.
func (s *Store) CreateGame(ctx context.Context, game *domain.IcebreakerGame) error {
	ref := s.gameDoc(game.ID)
	q := s.gamesCol().Where("session_id", "==", string(game.SessionID)).Limit(1)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		iter := tx.Documents(q)
		defer iter.Stop()

		if _, err := iter.Next(); err == nil {
			return fmt.Errorf("%w: game for session %s", domain.ErrAlreadyExists, game.SessionID)
		} else if !errors.Is(err, iterator.Done) {
			return err
		}
		return tx.Create(ref, record.FromGame(game))
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return mapErr("CreateGame", err, "game "+string(game.ID))
	}
	return nil
}

func decodeGame(snap *firestore.DocumentSnapshot) (*domain.IcebreakerGame, error) {
	var rec record.Game
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("firestore decode game: %w", err)
	}
	return rec.ToDomain(), nil
}

func (s *Store) GetGame(ctx context.Context, id domain.GameID) (*domain.IcebreakerGame, error) {
	snap, err := s.gameDoc(id).Get(ctx)
	if err != nil {
		return nil, mapErr("GetGame", err, "game "+string(id))
	}
	return decodeGame(snap)
}

func (s *Store) GetGameBySession(ctx context.Context, sessionID domain.SessionID) (*domain.IcebreakerGame, error) {
	iter := s.gamesCol().Where("session_id", "==", string(sessionID)).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, fmt.Errorf("%w: no game for session %s", domain.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("firestore GetGameBySession: %w", err)
	}
	return decodeGame(snap)
}

func (s *Store) UpdateGame(ctx context.Context, id domain.GameID, fn func(*domain.IcebreakerGame) error) (*domain.IcebreakerGame, error) {
	var out *domain.IcebreakerGame
	ref := s.gameDoc(id)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := decodeGame(snap)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.ID = current.ID
		next.SessionID = current.SessionID
		next.Version = current.Version + 1

		if err := tx.Set(ref, record.FromGame(next)); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, mapErr("UpdateGame", err, "game "+string(id))
		}
		return nil, err
	}
	return out, nil
}
