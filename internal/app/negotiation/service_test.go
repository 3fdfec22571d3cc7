package negotiation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/twogether/internal/adapters/llm"
	"github.com/PabloGalante/twogether/internal/adapters/storage/memory"
	"github.com/PabloGalante/twogether/internal/app/genschema"
	"github.com/PabloGalante/twogether/internal/app/ideas"
	"github.com/PabloGalante/twogether/internal/app/negotiation"
	"github.com/PabloGalante/twogether/internal/domain"
)

var t0 = time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)

// manualScheduler records tasks and runs them only when asked.
type manualScheduler struct {
	mu     sync.Mutex
	tasks  map[domain.TaskID]domain.Task
	delays []time.Duration
	next   int
}

func (m *manualScheduler) Schedule(delay time.Duration, task domain.Task) domain.TaskID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks == nil {
		m.tasks = map[domain.TaskID]domain.Task{}
	}
	m.next++
	id := domain.TaskID(fmt.Sprintf("task-%d", m.next))
	m.tasks[id] = task
	m.delays = append(m.delays, delay)
	return id
}

func (m *manualScheduler) Cancel(id domain.TaskID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[id]
	delete(m.tasks, id)
	return ok
}

func (m *manualScheduler) fireAll(ctx context.Context) {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	for _, task := range tasks {
		task(ctx)
	}
}

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

type recordingGames struct {
	mu    sync.Mutex
	calls []domain.SessionID
}

func (r *recordingGames) CreateForSession(_ context.Context, id domain.SessionID) (*domain.IcebreakerGame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
	return &domain.IcebreakerGame{ID: "g1", SessionID: id}, nil
}

type failingLLM struct{}

func (failingLLM) GenerateJSON(context.Context, domain.GenerationContext) (string, error) {
	return "", errors.New("model overloaded")
}

type fixture struct {
	svc       *negotiation.Service
	store     *memory.SessionStore
	scheduler *manualScheduler
	notifier  *recordingNotifier
	games     *recordingGames
}

func newFixture(t *testing.T, client domain.LLMClient) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewSessionStore(),
		scheduler: &manualScheduler{},
		notifier:  &recordingNotifier{},
		games:     &recordingGames{},
	}
	gen := ideas.NewGenerator(client, genschema.MustNew(), time.Second)
	f.svc = negotiation.NewService(f.store, gen, f.notifier, f.scheduler, f.games, negotiation.Options{
		IcebreakerDelay: 90 * time.Minute,
		Now:             func() time.Time { return t0 },
	})
	return f
}

func seattle() domain.Preferences {
	return domain.Preferences{
		Location:    "Seattle",
		TimeWindows: []domain.TimeWindow{{Start: t0, End: t0.Add(2 * time.Hour)}},
		Duration:    "2 hours",
		Vibes:       []string{"Cozy"},
	}
}

func partnerB() domain.Preferences {
	return domain.Preferences{
		Budget:  "$$",
		Dietary: []string{"Vegetarian", "vegetarian"},
		About:   domain.PersonalInfo{Name: "Riley"},
	}
}

func (f *fixture) create(t *testing.T) domain.SessionID {
	t.Helper()
	s, err := f.svc.CreateSession(context.Background(), negotiation.CreateSessionInput{
		PreferencesA:      seattle(),
		OriginatorContact: "+12065550100",
	})
	require.NoError(t, err)
	return s.ID
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	ctx := context.Background()

	id := f.create(t)

	summary, err := f.svc.GetSessionSummary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInitiated, summary.State)
	assert.Equal(t, "Seattle", summary.Location)
	assert.Len(t, summary.TimeWindows, 1)

	out, err := f.svc.SubmitPartnerBResponse(ctx, id, partnerB())
	require.NoError(t, err)
	assert.Equal(t, domain.StatePartnerBResponded, out.Session.State)
	require.GreaterOrEqual(t, len(out.Candidates), 1)
	assert.Len(t, out.Candidates, domain.MaxCandidates, "mock returns one extra idea")
	assert.False(t, out.UsedFallback)
	assert.Equal(t, []string{"vegetarian"}, out.Session.PreferencesB.Dietary)

	ids := []domain.CandidateID{out.Candidates[0].ID, out.Candidates[2].ID}
	selected, err := f.svc.SelectShortlist(ctx, id, ids)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePartnerASelected, selected.State)

	shortlist, err := f.svc.GetShortlist(ctx, id)
	require.NoError(t, err)
	require.Len(t, shortlist.Shortlist, 2)
	assert.Equal(t, ids[0], shortlist.Shortlist[0].ID)

	final, err := f.svc.Finalize(ctx, id, ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinalized, final.Session.State)
	assert.Equal(t, ids[1], final.FinalCandidate.ID)

	require.Len(t, f.notifier.sent, 1, "notification attempted exactly once")
	assert.Equal(t, domain.NotifyPlanFinalized, f.notifier.sent[0].Kind)
	assert.Equal(t, "+12065550100", f.notifier.dest[0])

	require.Len(t, f.scheduler.delays, 1)
	assert.Equal(t, 90*time.Minute, f.scheduler.delays[0])
	assert.Empty(t, f.games.calls, "icebreaker waits for the timer")

	f.scheduler.fireAll(ctx)
	assert.Equal(t, []domain.SessionID{id}, f.games.calls)

	results, err := f.svc.GetResults(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinalized, results.State)
	assert.Len(t, results.Candidates, domain.MaxCandidates)
	assert.Equal(t, ids, results.Shortlist)
	assert.Equal(t, ids[1], results.FinalChoice)

	_, err = f.svc.Finalize(ctx, id, ids[0])
	assert.ErrorIs(t, err, domain.ErrInvalidState, "finalized is terminal")
	assert.Len(t, f.notifier.sent, 1)
	assert.Len(t, f.scheduler.delays, 1)
}

func TestCreateSession_Validation(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	ctx := context.Background()

	tests := []struct {
		name    string
		prefs   func(p *domain.Preferences)
		contact string
	}{
		{"no location", func(p *domain.Preferences) { p.Location = "  " }, "+1"},
		{"no windows", func(p *domain.Preferences) { p.TimeWindows = nil }, "+1"},
		{"no duration", func(p *domain.Preferences) { p.Duration = "" }, "+1"},
		{"no contact", func(p *domain.Preferences) {}, ""},
		{"too many hobbies", func(p *domain.Preferences) { p.About.Hobbies = []string{"a", "b", "c", "d", "e", "f"} }, "+1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := seattle()
			tt.prefs(&p)
			_, err := f.svc.CreateSession(ctx, negotiation.CreateSessionInput{PreferencesA: p, OriginatorContact: tt.contact})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestSubmitPartnerBResponse_Twice(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	ctx := context.Background()
	id := f.create(t)

	_, err := f.svc.SubmitPartnerBResponse(ctx, id, partnerB())
	require.NoError(t, err)

	_, err = f.svc.SubmitPartnerBResponse(ctx, id, partnerB())
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.SubmitPartnerBResponse(ctx, "missing", partnerB())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmitPartnerBResponse_InvalidInput(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	id := f.create(t)

	b := partnerB()
	b.About.Name = strings.Repeat("x", 61)
	_, err := f.svc.SubmitPartnerBResponse(context.Background(), id, b)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	summary, err := f.svc.GetSessionSummary(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInitiated, summary.State)
}

func TestSubmitPartnerBResponse_PartnerBCannotMoveTheDate(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	id := f.create(t)

	b := partnerB()
	b.Location = "Portland"
	b.TimeWindows = []domain.TimeWindow{{Start: t0.Add(24 * time.Hour), End: t0.Add(26 * time.Hour)}}
	out, err := f.svc.SubmitPartnerBResponse(context.Background(), id, b)
	require.NoError(t, err)

	assert.Empty(t, out.Session.PreferencesB.Location)
	assert.Empty(t, out.Session.PreferencesB.TimeWindows)
	assert.Equal(t, "Seattle", out.Session.PreferencesA.Location)
}

func TestSubmitPartnerBResponse_GeneratorFailureUsesFallback(t *testing.T) {
	f := newFixture(t, failingLLM{})
	id := f.create(t)

	out, err := f.svc.SubmitPartnerBResponse(context.Background(), id, partnerB())
	require.NoError(t, err)
	assert.Equal(t, domain.StatePartnerBResponded, out.Session.State)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, ideas.Fallback(), out.Candidates[0])
	assert.True(t, out.UsedFallback)
}

func TestSubmitPartnerBResponse_Concurrent(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	id := f.create(t)

	const n = 2
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.SubmitPartnerBResponse(context.Background(), id, partnerB())
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, invalid int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInvalidState):
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, invalid)

	s, err := f.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Version)
}

func TestSelectShortlist(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	ctx := context.Background()
	id := f.create(t)

	// Wrong size fails InvalidInput in any state, even before partner B answers.
	for _, ids := range [][]domain.CandidateID{{"idea-1"}, {"idea-1", "idea-2", "idea-3"}, {"idea-1", "idea-1"}} {
		_, err := f.svc.SelectShortlist(ctx, id, ids)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%v", ids)
	}
	_, err := f.svc.SelectShortlist(ctx, "missing", []domain.CandidateID{"idea-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.SelectShortlist(ctx, id, []domain.CandidateID{"idea-1", "idea-2"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.SelectShortlist(ctx, "missing", []domain.CandidateID{"idea-1", "idea-2"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.SubmitPartnerBResponse(ctx, id, partnerB())
	require.NoError(t, err)

	_, err = f.svc.SelectShortlist(ctx, id, []domain.CandidateID{"idea-1", "idea-9"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.SelectShortlist(ctx, id, []domain.CandidateID{"idea-1", "idea-2"})
	require.NoError(t, err)

	_, err = f.svc.SelectShortlist(ctx, id, []domain.CandidateID{"idea-1", "idea-3"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestFinalize(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	ctx := context.Background()
	id := f.create(t)

	_, err := f.svc.Finalize(ctx, id, "idea-1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.SubmitPartnerBResponse(ctx, id, partnerB())
	require.NoError(t, err)
	_, err = f.svc.SelectShortlist(ctx, id, []domain.CandidateID{"idea-1", "idea-2"})
	require.NoError(t, err)

	_, err = f.svc.Finalize(ctx, id, "idea-3")
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "not on the shortlist")

	_, err = f.svc.Finalize(ctx, "missing", "idea-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.scheduler.delays)
}

func TestFinalize_NotifyFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	f.notifier.err = errors.New("sms gateway down")
	ctx := context.Background()
	id := f.create(t)

	_, err := f.svc.SubmitPartnerBResponse(ctx, id, partnerB())
	require.NoError(t, err)
	_, err = f.svc.SelectShortlist(ctx, id, []domain.CandidateID{"idea-1", "idea-2"})
	require.NoError(t, err)

	out, err := f.svc.Finalize(ctx, id, "idea-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinalized, out.Session.State)
	assert.Len(t, f.notifier.sent, 1)
	assert.Len(t, f.scheduler.delays, 1, "icebreaker still armed")
}

func TestReadsNeverMutate(t *testing.T) {
	f := newFixture(t, llm.NewMockLLM())
	ctx := context.Background()
	id := f.create(t)

	shortlist, err := f.svc.GetShortlist(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, shortlist.Shortlist)

	results, err := f.svc.GetResults(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, results.Candidates)

	s, err := f.store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Version)

	_, err = f.svc.GetResults(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.GetShortlist(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.GetSessionSummary(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlanFinalizedNotification(t *testing.T) {
	s, err := domain.NewDateSession("s1", "+12065550100", seattle(), t0)
	require.NoError(t, err)
	require.NoError(t, s.RecordPartnerB(partnerB(), []domain.Candidate{
		{ID: "c1", Title: "Ramen crawl", Cost: decimal.RequireFromString("42.5"), Vibe: "foodie"},
		{ID: "c2", Title: "Kayak at dusk", Cost: decimal.NewFromInt(60), Vibe: "outdoors", Venue: "Lake Union"},
	}, t0))
	require.NoError(t, s.SelectShortlist([]domain.CandidateID{"c1", "c2"}, t0))
	require.NoError(t, s.Finalize("c2", t0))

	n := negotiation.PlanFinalizedNotification(s)
	assert.Equal(t, domain.NotifyPlanFinalized, n.Kind)
	assert.Equal(t, domain.SessionID("s1"), n.SessionID)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "plan_finalized", []byte(n.Body))
}
