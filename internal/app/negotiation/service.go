// Package negotiation drives a date session from partner A's proposal to the
// finalized plan.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

// CandidateGenerator produces the candidate list for a session. It never
// fails; upstream problems surface as a fallback candidate.
type CandidateGenerator interface {
	Generate(ctx context.Context, sessionID domain.SessionID, prefsA, prefsB domain.Preferences) []domain.Candidate
}

// GameCreator builds the icebreaker game once the plan is final.
type GameCreator interface {
	CreateForSession(ctx context.Context, sessionID domain.SessionID) (*domain.IcebreakerGame, error)
}

type Options struct {
	IcebreakerDelay time.Duration
	NotifyTimeout   time.Duration
	Now             func() time.Time
}

type Service struct {
	sessions  domain.SessionStore
	generator CandidateGenerator
	notifier  domain.Notifier
	scheduler domain.Scheduler
	games     GameCreator

	icebreakerDelay time.Duration
	notifyTimeout   time.Duration
	now             func() time.Time
}

func NewService(
	sessions domain.SessionStore,
	generator CandidateGenerator,
	notifier domain.Notifier,
	scheduler domain.Scheduler,
	games GameCreator,
	opts Options,
) *Service {
	s := &Service{
		sessions:        sessions,
		generator:       generator,
		notifier:        notifier,
		scheduler:       scheduler,
		games:           games,
		icebreakerDelay: opts.IcebreakerDelay,
		notifyTimeout:   opts.NotifyTimeout,
		now:             opts.Now,
	}
	if s.icebreakerDelay <= 0 {
		s.icebreakerDelay = 2 * time.Hour
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 10 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type CreateSessionInput struct {
	PreferencesA      domain.Preferences
	OriginatorContact string
}

func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*domain.DateSession, error) {
	log := observability.LoggerFromContext(ctx)

	session, err := domain.NewDateSession(domain.SessionID(domain.NewID()), in.OriginatorContact, in.PreferencesA, s.now())
	if err != nil {
		log.Info("session rejected", "error", err)
		return nil, err
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	log.Info("session created", "session_id", session.ID)
	return session, nil
}

func (s *Service) GetSessionSummary(ctx context.Context, id domain.SessionID) (*SessionSummary, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return summaryOf(session), nil
}

type SubmitResponseOutput struct {
	Session      *domain.DateSession
	Candidates   []domain.Candidate
	UsedFallback bool
}

// SubmitPartnerBResponse records partner B's preferences and the generated
// candidates. Of two racing submissions exactly one succeeds; the other sees
// ErrInvalidState.
func (s *Service) SubmitPartnerBResponse(ctx context.Context, id domain.SessionID, prefsB domain.Preferences) (*SubmitResponseOutput, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", id)

	prefsB = domain.NormalizePreferences(domain.ForPartnerB(prefsB))
	if err := domain.ValidatePartnerB(prefsB); err != nil {
		log.Info("partner B response rejected", "error", err)
		return nil, err
	}

	current, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	// Checked before generation so a duplicate submit does not pay for an
	// LLM call; re-checked inside the update.
	if err := domain.CanTransitionSession(current.State, domain.StatePartnerBResponded); err != nil {
		log.Info("partner B response rejected", "state", current.State, "error", err)
		return nil, err
	}

	candidates := s.generator.Generate(ctx, id, current.PreferencesA, prefsB)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: generator returned no candidates", domain.ErrUpstream)
	}

	updated, err := s.sessions.UpdateSession(ctx, id, func(session *domain.DateSession) error {
		return session.RecordPartnerB(prefsB, candidates, s.now())
	})
	if err != nil {
		log.Info("partner B response not recorded", "error", err)
		return nil, err
	}

	usedFallback := len(updated.Candidates) == 1 && updated.Candidates[0].Fallback
	log.Info("partner B responded",
		"candidates", len(updated.Candidates),
		"fallback", usedFallback)

	return &SubmitResponseOutput{
		Session:      updated,
		Candidates:   updated.Candidates,
		UsedFallback: usedFallback,
	}, nil
}

func (s *Service) GetResults(ctx context.Context, id domain.SessionID) (*Results, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return resultsOf(session), nil
}

func (s *Service) GetShortlist(ctx context.Context, id domain.SessionID) (*ShortlistView, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return shortlistOf(session), nil
}

// SelectShortlist records partner A's two picks. A payload that is not two
// distinct ids is rejected before the session is loaded.
func (s *Service) SelectShortlist(ctx context.Context, id domain.SessionID, ids []domain.CandidateID) (*domain.DateSession, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", id)

	if err := domain.CheckShortlistShape(ids); err != nil {
		log.Info("shortlist rejected", "error", err)
		return nil, err
	}

	updated, err := s.sessions.UpdateSession(ctx, id, func(session *domain.DateSession) error {
		return session.SelectShortlist(ids, s.now())
	})
	if err != nil {
		log.Info("shortlist rejected", "error", err)
		return nil, err
	}

	log.Info("shortlist selected", "shortlist", ids)
	return updated, nil
}

type FinalizeOutput struct {
	Session        *domain.DateSession
	FinalCandidate domain.Candidate
	IcebreakerTask domain.TaskID
}

// Finalize records partner B's pick, notifies the originator once and arms
// the icebreaker task. Notification failures are logged, never returned.
func (s *Service) Finalize(ctx context.Context, id domain.SessionID, choice domain.CandidateID) (*FinalizeOutput, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", id)

	updated, err := s.sessions.UpdateSession(ctx, id, func(session *domain.DateSession) error {
		return session.Finalize(choice, s.now())
	})
	if err != nil {
		log.Info("finalize rejected", "error", err)
		return nil, err
	}

	final, _ := updated.FinalCandidate()
	log.Info("session finalized", "final_choice", final.ID)

	s.notify(ctx, updated.OriginatorContact, PlanFinalizedNotification(updated))
	taskID := s.armIcebreaker(ctx, updated.ID)

	return &FinalizeOutput{
		Session:        updated,
		FinalCandidate: final,
		IcebreakerTask: taskID,
	}, nil
}

func (s *Service) notify(ctx context.Context, destination string, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	log := observability.LoggerFromContext(ctx).With("session_id", n.SessionID, "kind", n.Kind)

	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, destination, n); err != nil {
		log.Warn("notification failed", "error", err)
		return
	}
	log.Info("notification sent")
}

func (s *Service) armIcebreaker(ctx context.Context, id domain.SessionID) domain.TaskID {
	if s.scheduler == nil || s.games == nil {
		return ""
	}
	log := observability.LoggerFromContext(ctx).With("session_id", id)

	taskID := s.scheduler.Schedule(s.icebreakerDelay, func(taskCtx context.Context) {
		tlog := observability.WithFields("session_id", id, "task", "icebreaker")

		game, err := s.games.CreateForSession(taskCtx, id)
		switch {
		case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrAlreadyExists):
			tlog.Info("icebreaker skipped", "reason", err)
		case err != nil:
			tlog.Error("icebreaker creation failed", "error", err)
		default:
			tlog.Info("icebreaker created", "game_id", game.ID)
		}
	})

	log.Info("icebreaker armed", "task_id", taskID, "delay", s.icebreakerDelay.String())
	return taskID
}
