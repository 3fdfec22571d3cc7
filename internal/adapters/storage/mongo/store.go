// Package mongo stores sessions and games in MongoDB. Updates are
// compare-and-swap on the version field.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/PabloGalante/twogether/internal/adapters/storage/record"
	"github.com/PabloGalante/twogether/internal/domain"
)

const maxUpdateAttempts = 10

type Store struct {
	client   *mongo.Client
	sessions *mongo.Collection
	games    *mongo.Collection
}

// NewStore connects, pings and ensures the unique session index on games.
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		sessions: db.Collection("sessions"),
		games:    db.Collection("icebreaker_games"),
	}

	_, err = s.games.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_session_id"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo create index: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.DateSession) error {
	if _, err := s.sessions.InsertOne(ctx, record.FromSession(session)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: session %s", domain.ErrAlreadyExists, session.ID)
		}
		return fmt.Errorf("mongo CreateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.DateSession, error) {
	var rec record.Session
	err := s.sessions.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("mongo GetSession: %w", err)
	}
	return rec.ToDomain()
}

func (s *Store) UpdateSession(ctx context.Context, id domain.SessionID, fn func(*domain.DateSession) error) (*domain.DateSession, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.ID = current.ID
		next.Version = current.Version + 1

		res, err := s.sessions.ReplaceOne(ctx,
			bson.M{"_id": string(id), "version": current.Version},
			record.FromSession(next))
		if err != nil {
			return nil, fmt.Errorf("mongo UpdateSession: %w", err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: session %s", domain.ErrConflict, id)
}

// ─────────────────────────────────────────
// GameStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateGame(ctx context.Context, game *domain.IcebreakerGame) error {
	if _, err := s.games.InsertOne(ctx, record.FromGame(game)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: game for session %s", domain.ErrAlreadyExists, game.SessionID)
		}
		return fmt.Errorf("mongo CreateGame: %w", err)
	}
	return nil
}

func (s *Store) findGame(ctx context.Context, filter bson.M, what string) (*domain.IcebreakerGame, error) {
	var rec record.Game
	if err := s.games.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, what)
		}
		return nil, fmt.Errorf("mongo find game: %w", err)
	}
	return rec.ToDomain(), nil
}

func (s *Store) GetGame(ctx context.Context, id domain.GameID) (*domain.IcebreakerGame, error) {
	return s.findGame(ctx, bson.M{"_id": string(id)}, "game "+string(id))
}

func (s *Store) GetGameBySession(ctx context.Context, sessionID domain.SessionID) (*domain.IcebreakerGame, error) {
	return s.findGame(ctx, bson.M{"session_id": string(sessionID)}, "no game for session "+string(sessionID))
}

func (s *Store) UpdateGame(ctx context.Context, id domain.GameID, fn func(*domain.IcebreakerGame) error) (*domain.IcebreakerGame, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.GetGame(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.ID = current.ID
		next.SessionID = current.SessionID
		next.Version = current.Version + 1

		res, err := s.games.ReplaceOne(ctx,
			bson.M{"_id": string(id), "version": current.Version},
			record.FromGame(next))
		if err != nil {
			return nil, fmt.Errorf("mongo UpdateGame: %w", err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: game %s", domain.ErrConflict, id)
}
