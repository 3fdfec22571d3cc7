// Package icebreaker runs the quiz the two partners play once their date is
// final.
package icebreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

// QuizSource builds the question set for a session.
type QuizSource interface {
	Generate(ctx context.Context, sessionID domain.SessionID, prefsA, prefsB domain.Preferences) Quiz
}

type Options struct {
	NotifyTimeout time.Duration
	Now           func() time.Time
}

type Service struct {
	sessions domain.SessionStore
	games    domain.GameStore
	quiz     QuizSource
	notifier domain.Notifier

	notifyTimeout time.Duration
	now           func() time.Time
}

func NewService(sessions domain.SessionStore, games domain.GameStore, quiz QuizSource, notifier domain.Notifier, opts Options) *Service {
	s := &Service{
		sessions:      sessions,
		games:         games,
		quiz:          quiz,
		notifier:      notifier,
		notifyTimeout: opts.NotifyTimeout,
		now:           opts.Now,
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 10 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateForSession re-reads the session, and when both preference records are
// present builds, stores and announces its game. A session without partner
// B's record yields ErrInvalidState; a second game yields ErrAlreadyExists.
func (s *Service) CreateForSession(ctx context.Context, sessionID domain.SessionID) (*domain.IcebreakerGame, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.PreferencesB == nil {
		return nil, fmt.Errorf("%w: session %s has no partner B preferences", domain.ErrInvalidState, sessionID)
	}
	if _, err := s.games.GetGameBySession(ctx, sessionID); err == nil {
		return nil, fmt.Errorf("%w: game for session %s", domain.ErrAlreadyExists, sessionID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	quiz := s.quiz.Generate(ctx, sessionID, session.PreferencesA, *session.PreferencesB)
	if len(quiz.Questions) == 0 {
		quiz = FallbackQuiz(session.PreferencesA, *session.PreferencesB)
	}

	game := domain.NewIcebreakerGame(domain.GameID(domain.NewID()), sessionID, quiz.Questions, quiz.FunFacts, s.now())
	if err := s.games.CreateGame(ctx, game); err != nil {
		return nil, err
	}
	log.Info("icebreaker game created",
		"game_id", game.ID,
		"questions", len(game.Questions),
		"fallback", quiz.Fallback)

	s.notify(ctx, session.OriginatorContact, domain.Notification{
		Kind:      domain.NotifyIcebreakerReady,
		SessionID: sessionID,
		GameID:    game.ID,
		Subject:   "Your icebreaker quiz is ready",
		Body:      fmt.Sprintf("Play a %d-round quiz before your date. Game: %s", Rounds, game.ID),
	})
	return game, nil
}

func (s *Service) notify(ctx context.Context, destination string, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	log := observability.LoggerFromContext(ctx).With("session_id", n.SessionID, "game_id", n.GameID)

	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, destination, n); err != nil {
		log.Warn("notification failed", "error", err)
	}
}

func (s *Service) GetGame(ctx context.Context, id domain.GameID) (*GameView, error) {
	g, err := s.games.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(g), nil
}

func (s *Service) GetGameBySession(ctx context.Context, sessionID domain.SessionID) (*GameView, error) {
	g, err := s.games.GetGameBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return viewOf(g), nil
}

func (s *Service) StartGame(ctx context.Context, id domain.GameID) (*GameView, error) {
	log := observability.LoggerFromContext(ctx).With("game_id", id)

	g, err := s.games.UpdateGame(ctx, id, func(g *domain.IcebreakerGame) error {
		return g.Start(s.now())
	})
	if err != nil {
		log.Info("start rejected", "error", err)
		return nil, err
	}
	log.Info("game started")
	return viewOf(g), nil
}

type SubmitAnswerInput struct {
	GameID         domain.GameID
	QuestionID     domain.QuestionID
	SelectedOption string
	Party          domain.Party
}

type AnswerResult struct {
	IsCorrect     bool   `json:"is_correct"`
	CorrectOption string `json:"correct_option"`
	ScoreA        int    `json:"score_a"`
	ScoreB        int    `json:"score_b"`
}

// SubmitAnswer records one answer. A second answer to the same question fails
// with ErrDuplicateAnswer and leaves the scores alone.
func (s *Service) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*AnswerResult, error) {
	log := observability.LoggerFromContext(ctx).With("game_id", in.GameID, "question_id", in.QuestionID)

	var answer domain.Answer
	g, err := s.games.UpdateGame(ctx, in.GameID, func(g *domain.IcebreakerGame) error {
		a, err := g.Answer(in.QuestionID, in.SelectedOption, in.Party, s.now())
		answer = a
		return err
	})
	if err != nil {
		log.Info("answer rejected", "error", err)
		return nil, err
	}

	q, _ := g.Question(in.QuestionID)
	log.Info("answer recorded", "party", in.Party, "correct", answer.IsCorrect)
	return &AnswerResult{
		IsCorrect:     answer.IsCorrect,
		CorrectOption: q.CorrectOption,
		ScoreA:        g.ScoreA,
		ScoreB:        g.ScoreB,
	}, nil
}

// CompleteGame closes the game and returns the final snapshot. Completing an
// already completed game returns the same snapshot.
func (s *Service) CompleteGame(ctx context.Context, id domain.GameID) (*Snapshot, error) {
	log := observability.LoggerFromContext(ctx).With("game_id", id)

	current, err := s.games.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.State == domain.GameCompleted {
		return snapshotOf(current), nil
	}

	g, err := s.games.UpdateGame(ctx, id, func(g *domain.IcebreakerGame) error {
		return g.Complete(s.now())
	})
	if err != nil {
		log.Info("complete rejected", "error", err)
		return nil, err
	}
	log.Info("game completed", "score_a", g.ScoreA, "score_b", g.ScoreB)
	return snapshotOf(g), nil
}

func (s *Service) CancelGame(ctx context.Context, id domain.GameID) (*GameView, error) {
	log := observability.LoggerFromContext(ctx).With("game_id", id)

	g, err := s.games.UpdateGame(ctx, id, func(g *domain.IcebreakerGame) error {
		return g.Cancel(s.now())
	})
	if err != nil {
		log.Info("cancel rejected", "error", err)
		return nil, err
	}
	log.Info("game cancelled")
	return viewOf(g), nil
}
