package icebreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/twogether/internal/adapters/storage/memory"
	"github.com/PabloGalante/twogether/internal/domain"
)

var t0 = time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	dest []string
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, destination string, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	r.dest = append(r.dest, destination)
	return r.err
}

type fallbackSource struct{}

func (fallbackSource) Generate(_ context.Context, _ domain.SessionID, a, b domain.Preferences) Quiz {
	return FallbackQuiz(a, b)
}

type fixture struct {
	svc      *Service
	sessions *memory.SessionStore
	games    *memory.GameStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: memory.NewSessionStore(),
		games:    memory.NewGameStore(),
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(f.sessions, f.games, fallbackSource{}, f.notifier, Options{
		Now: func() time.Time { return t0 },
	})
	return f
}

// finalizedSession stores a session that went through the whole negotiation.
func (f *fixture) finalizedSession(t *testing.T) domain.SessionID {
	t.Helper()
	a := prefsA()
	a.TimeWindows = []domain.TimeWindow{{Start: t0, End: t0.Add(2 * time.Hour)}}
	a.Duration = "2 hours"

	s, err := domain.NewDateSession(domain.SessionID(domain.NewID()), "+12065550100", a, t0)
	require.NoError(t, err)
	require.NoError(t, s.RecordPartnerB(prefsB(), []domain.Candidate{
		{ID: "c1", Title: "Ramen", Cost: decimal.NewFromInt(30), Vibe: "foodie"},
		{ID: "c2", Title: "Kayak", Cost: decimal.NewFromInt(60), Vibe: "outdoors"},
	}, t0))
	require.NoError(t, s.SelectShortlist([]domain.CandidateID{"c1", "c2"}, t0))
	require.NoError(t, s.Finalize("c2", t0))
	require.NoError(t, f.sessions.CreateSession(context.Background(), s))
	return s.ID
}

func (f *fixture) newGame(t *testing.T) *domain.IcebreakerGame {
	t.Helper()
	g, err := f.svc.CreateForSession(context.Background(), f.finalizedSession(t))
	require.NoError(t, err)
	return g
}

func TestCreateForSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sid := f.finalizedSession(t)

	g, err := f.svc.CreateForSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, domain.GameScheduled, g.State)
	assert.Equal(t, sid, g.SessionID)
	assert.Len(t, g.Questions, QuestionsMax)
	assert.NotEmpty(t, g.FunFacts)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, domain.NotifyIcebreakerReady, f.notifier.sent[0].Kind)
	assert.Equal(t, g.ID, f.notifier.sent[0].GameID)
	assert.Equal(t, "+12065550100", f.notifier.dest[0])

	_, err = f.svc.CreateForSession(ctx, sid)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Len(t, f.notifier.sent, 1)

	view, err := f.svc.GetGameBySession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, g.ID, view.ID)
}

func TestCreateForSession_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateForSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	a := prefsA()
	a.TimeWindows = []domain.TimeWindow{{Start: t0, End: t0.Add(time.Hour)}}
	a.Duration = "1 hour"
	s, err := domain.NewDateSession("s-initiated", "+1", a, t0)
	require.NoError(t, err)
	require.NoError(t, f.sessions.CreateSession(ctx, s))

	_, err = f.svc.CreateForSession(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Empty(t, f.notifier.sent)
}

func TestCreateForSession_NotifyFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("sms gateway down")

	g, err := f.svc.CreateForSession(context.Background(), f.finalizedSession(t))
	require.NoError(t, err)
	assert.NotNil(t, g)
	assert.Len(t, f.notifier.sent, 1)
}

func TestGameFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.newGame(t)
	q1 := g.Questions[0] // about A, answered by B

	_, err := f.svc.SubmitAnswer(ctx, SubmitAnswerInput{GameID: g.ID, QuestionID: q1.ID, SelectedOption: q1.CorrectOption, Party: domain.PartyB})
	assert.ErrorIs(t, err, domain.ErrInvalidState, "answers need an active game")

	view, err := f.svc.StartGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameActive, view.State)
	require.NotNil(t, view.StartedAt)
	for _, q := range view.Questions {
		assert.Empty(t, q.CorrectOption)
	}
	assert.Empty(t, view.FunFacts)

	_, err = f.svc.StartGame(ctx, g.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	res, err := f.svc.SubmitAnswer(ctx, SubmitAnswerInput{GameID: g.ID, QuestionID: q1.ID, SelectedOption: q1.CorrectOption, Party: domain.PartyB})
	require.NoError(t, err)
	assert.Equal(t, &AnswerResult{IsCorrect: true, CorrectOption: q1.CorrectOption, ScoreA: 0, ScoreB: 1}, res)

	_, err = f.svc.SubmitAnswer(ctx, SubmitAnswerInput{GameID: g.ID, QuestionID: q1.ID, SelectedOption: q1.Options[0], Party: domain.PartyB})
	assert.ErrorIs(t, err, domain.ErrDuplicateAnswer)

	q2 := g.Questions[1] // about B, answered by A
	_, err = f.svc.SubmitAnswer(ctx, SubmitAnswerInput{GameID: g.ID, QuestionID: q2.ID, SelectedOption: q2.CorrectOption, Party: domain.PartyB})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "wrong answerer")

	wrong := ""
	for _, o := range q2.Options {
		if o != q2.CorrectOption {
			wrong = o
			break
		}
	}
	res, err = f.svc.SubmitAnswer(ctx, SubmitAnswerInput{GameID: g.ID, QuestionID: q2.ID, SelectedOption: wrong, Party: domain.PartyA})
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, q2.CorrectOption, res.CorrectOption)
	assert.Equal(t, 0, res.ScoreA)
	assert.Equal(t, 1, res.ScoreB)

	_, err = f.svc.SubmitAnswer(ctx, SubmitAnswerInput{GameID: g.ID, QuestionID: "q99", SelectedOption: "x", Party: domain.PartyA})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	view, err = f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, q1.CorrectOption, view.Questions[0].CorrectOption)
	assert.True(t, view.Questions[0].Answered)
	assert.Empty(t, view.Questions[2].CorrectOption)
	assert.Len(t, view.Answers, 2)

	snap, err := f.svc.CompleteGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ScoreA)
	assert.Equal(t, 1, snap.ScoreB)
	assert.Equal(t, 1, snap.CorrectAnswers)
	assert.Equal(t, QuestionsMax, snap.TotalQuestions)
	assert.Equal(t, g.FunFacts, snap.FunFacts)

	again, err := f.svc.CompleteGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, again)

	view, err = f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameCompleted, view.State)
	assert.Equal(t, g.FunFacts, view.FunFacts)

	_, err = f.svc.CancelGame(ctx, g.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCompleteGame_ScheduledWithQuestions(t *testing.T) {
	f := newFixture(t)
	g := f.newGame(t)

	_, err := f.svc.CompleteGame(context.Background(), g.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCancelGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.newGame(t)

	view, err := f.svc.CancelGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameCancelled, view.State)

	_, err = f.svc.StartGame(ctx, g.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestUnknownGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetGame(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.StartGame(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.CompleteGame(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.SubmitAnswer(ctx, SubmitAnswerInput{GameID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
