// Package sqlite stores sessions and games in a local SQLite file through the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/PabloGalante/twogether/internal/adapters/storage/record"
	"github.com/PabloGalante/twogether/internal/domain"
)

const maxUpdateAttempts = 10

const schema = `
CREATE TABLE IF NOT EXISTS date_sessions (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	version INTEGER NOT NULL,
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS icebreaker_games (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL UNIQUE,
	state TEXT NOT NULL,
	version INTEGER NOT NULL,
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_date_sessions_state ON date_sessions(state);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; the version check still guards
	// read-modify-write across calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.DateSession) error {
	data, err := json.Marshal(record.FromSession(session))
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO date_sessions (id, state, version, data, updated_at) VALUES (?, ?, ?, ?, ?)`,
		string(session.ID), string(session.State), session.Version, string(data), stamp(session.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: session %s", domain.ErrAlreadyExists, session.ID)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.DateSession, error) {
	var (
		version int64
		data    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, data FROM date_sessions WHERE id = ?`, string(id)).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var rec record.Session
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	rec.Version = version
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

		data, err := json.Marshal(record.FromSession(next))
		if err != nil {
			return nil, fmt.Errorf("encode session: %w", err)
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE date_sessions SET state = ?, version = ?, data = ?, updated_at = ? WHERE id = ? AND version = ?`,
			string(next.State), next.Version, string(data), stamp(next.UpdatedAt), string(id), current.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to update session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: session %s", domain.ErrConflict, id)
}

// ─────────────────────────────────────────
// GameStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateGame(ctx context.Context, game *domain.IcebreakerGame) error {
	data, err := json.Marshal(record.FromGame(game))
	if err != nil {
		return fmt.Errorf("encode game: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO icebreaker_games (id, session_id, state, version, data, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(game.ID), string(game.SessionID), string(game.State), game.Version, string(data), stamp(game.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: game for session %s", domain.ErrAlreadyExists, game.SessionID)
		}
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func (s *Store) findGame(ctx context.Context, what, where string, arg string) (*domain.IcebreakerGame, error) {
	var (
		version int64
		data    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, data FROM icebreaker_games WHERE `+where+` = ?`, arg).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	var rec record.Game
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	rec.Version = version
	return rec.ToDomain(), nil
}

func (s *Store) GetGame(ctx context.Context, id domain.GameID) (*domain.IcebreakerGame, error) {
	return s.findGame(ctx, "game "+string(id), "id", string(id))
}

func (s *Store) GetGameBySession(ctx context.Context, sessionID domain.SessionID) (*domain.IcebreakerGame, error) {
	return s.findGame(ctx, "no game for session "+string(sessionID), "session_id", string(sessionID))
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

		data, err := json.Marshal(record.FromGame(next))
		if err != nil {
			return nil, fmt.Errorf("encode game: %w", err)
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE icebreaker_games SET state = ?, version = ?, data = ?, updated_at = ? WHERE id = ? AND version = ?`,
			string(next.State), next.Version, string(data), stamp(next.UpdatedAt), string(id), current.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to update game: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: game %s", domain.ErrConflict, id)
}
