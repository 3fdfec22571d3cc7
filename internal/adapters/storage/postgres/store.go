// Package postgres stores sessions and games through gorm. The record is kept
// as a JSON column next to the columns used for lookups and version checks.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/PabloGalante/twogether/internal/adapters/storage/record"
	"github.com/PabloGalante/twogether/internal/domain"
)

const maxUpdateAttempts = 10

type sessionRow struct {
	ID        string `gorm:"primaryKey"`
	State     string `gorm:"index;not null"`
	Version   int64  `gorm:"not null"`
	Data      datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (sessionRow) TableName() string { return "date_sessions" }

type gameRow struct {
	ID        string `gorm:"primaryKey"`
	SessionID string `gorm:"uniqueIndex;not null"`
	State     string `gorm:"not null"`
	Version   int64  `gorm:"not null"`
	Data      datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (gameRow) TableName() string { return "icebreaker_games" }

type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the two tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the two tables.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&sessionRow{}, &gameRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toSessionRow(session *domain.DateSession) (*sessionRow, error) {
	raw, err := json.Marshal(record.FromSession(session))
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return &sessionRow{
		ID:        string(session.ID),
		State:     string(session.State),
		Version:   session.Version,
		Data:      datatypes.JSON(raw),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}, nil
}

func (r *sessionRow) toDomain() (*domain.DateSession, error) {
	var rec record.Session
	if err := json.Unmarshal(r.Data, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", r.ID, err)
	}
	rec.Version = r.Version
	return rec.ToDomain()
}

func toGameRow(game *domain.IcebreakerGame) (*gameRow, error) {
	raw, err := json.Marshal(record.FromGame(game))
	if err != nil {
		return nil, fmt.Errorf("encode game: %w", err)
	}
	return &gameRow{
		ID:        string(game.ID),
		SessionID: string(game.SessionID),
		State:     string(game.State),
		Version:   game.Version,
		Data:      datatypes.JSON(raw),
		CreatedAt: game.CreatedAt,
		UpdatedAt: game.UpdatedAt,
	}, nil
}

func (r *gameRow) toDomain() (*domain.IcebreakerGame, error) {
	var rec record.Game
	if err := json.Unmarshal(r.Data, &rec); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", r.ID, err)
	}
	rec.Version = r.Version
	return rec.ToDomain(), nil
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.DateSession) error {
	row, err := toSessionRow(session)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: session %s", domain.ErrAlreadyExists, session.ID)
		}
		return fmt.Errorf("postgres CreateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.DateSession, error) {
	var row sessionRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("postgres GetSession: %w", err)
	}
	return row.toDomain()
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

		row, err := toSessionRow(next)
		if err != nil {
			return nil, err
		}
		res := s.db.WithContext(ctx).Model(&sessionRow{}).
			Where("id = ? AND version = ?", string(id), current.Version).
			Updates(map[string]any{
				"state":      row.State,
				"version":    row.Version,
				"data":       row.Data,
				"updated_at": row.UpdatedAt,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("postgres UpdateSession: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: session %s", domain.ErrConflict, id)
}

// ─────────────────────────────────────────
// GameStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateGame(ctx context.Context, game *domain.IcebreakerGame) error {
	row, err := toGameRow(game)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: game for session %s", domain.ErrAlreadyExists, game.SessionID)
		}
		return fmt.Errorf("postgres CreateGame: %w", err)
	}
	return nil
}

func (s *Store) findGame(ctx context.Context, what string, query string, arg any) (*domain.IcebreakerGame, error) {
	var row gameRow
	if err := s.db.WithContext(ctx).First(&row, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, what)
		}
		return nil, fmt.Errorf("postgres find game: %w", err)
	}
	return row.toDomain()
}

func (s *Store) GetGame(ctx context.Context, id domain.GameID) (*domain.IcebreakerGame, error) {
	return s.findGame(ctx, "game "+string(id), "id = ?", string(id))
}

func (s *Store) GetGameBySession(ctx context.Context, sessionID domain.SessionID) (*domain.IcebreakerGame, error) {
	return s.findGame(ctx, "no game for session "+string(sessionID), "session_id = ?", string(sessionID))
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

		row, err := toGameRow(next)
		if err != nil {
			return nil, err
		}
		res := s.db.WithContext(ctx).Model(&gameRow{}).
			Where("id = ? AND version = ?", string(id), current.Version).
			Updates(map[string]any{
				"state":      row.State,
				"version":    row.Version,
				"data":       row.Data,
				"updated_at": row.UpdatedAt,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("postgres UpdateGame: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: game %s", domain.ErrConflict, id)
}
