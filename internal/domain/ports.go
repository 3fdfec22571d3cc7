package domain

import (
	"context"
	"time"
)

// GenerationKind selects what the LLM is asked to produce.
type GenerationKind string

const (
	GenerateIdeas GenerationKind = "ideas"
	GenerateQuiz  GenerationKind = "quiz"
)

// GenerationContext gives the LLM everything it needs to build a prompt.
type GenerationContext struct {
	Kind         GenerationKind
	SessionID    SessionID
	PreferencesA Preferences
	PreferencesB Preferences
	MaxItems     int
}

// LLMClient defines how the core application asks an LLM for structured
// content. Implementations return the raw JSON text; callers validate it.
type LLMClient interface {
	GenerateJSON(ctx context.Context, genCtx GenerationContext) (string, error)
}

// SessionStore persists date sessions. UpdateSession loads the current record,
// applies fn to a private copy and commits atomically per session id; fn may
// run more than once and must not have side effects. An error from fn aborts
// the update and is returned unchanged.
type SessionStore interface {
	CreateSession(ctx context.Context, session *DateSession) error
	GetSession(ctx context.Context, id SessionID) (*DateSession, error)
	UpdateSession(ctx context.Context, id SessionID, fn func(*DateSession) error) (*DateSession, error)
	Close() error
}

// GameStore persists icebreaker games with at most one game per session.
type GameStore interface {
	CreateGame(ctx context.Context, game *IcebreakerGame) error
	GetGame(ctx context.Context, id GameID) (*IcebreakerGame, error)
	GetGameBySession(ctx context.Context, sessionID SessionID) (*IcebreakerGame, error)
	UpdateGame(ctx context.Context, id GameID, fn func(*IcebreakerGame) error) (*IcebreakerGame, error)
	Close() error
}

type NotificationKind string

const (
	NotifyPlanFinalized   NotificationKind = "plan_finalized"
	NotifyIcebreakerReady NotificationKind = "icebreaker_ready"
)

// Notification is the payload handed to a Notifier.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	SessionID SessionID        `json:"session_id"`
	GameID    GameID           `json:"game_id,omitempty"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
}

// Notifier delivers a notification to a destination (phone, chat id, ...).
type Notifier interface {
	Notify(ctx context.Context, destination string, n Notification) error
}

type TaskID string

// Task is deferred work run by a Scheduler.
type Task func(ctx context.Context)

// Scheduler runs a task once, best effort, at or after delay. Pending tasks
// live in process memory only.
type Scheduler interface {
	Schedule(delay time.Duration, task Task) TaskID
	Cancel(id TaskID) bool
}
