// Package storetest holds the behavior every SessionStore and GameStore
// backend must share. Backend packages run it from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/twogether/internal/domain"
)

var t0 = time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)

// NewSession returns a valid Initiated session with a fresh id.
func NewSession(t *testing.T) *domain.DateSession {
	t.Helper()
	s, err := domain.NewDateSession(domain.SessionID(domain.NewID()), "+12065550100", domain.Preferences{
		Location:    "Seattle",
		TimeWindows: []domain.TimeWindow{{Start: t0, End: t0.Add(2 * time.Hour)}},
		Duration:    "2 hours",
		Budget:      "$$",
		Vibes:       []string{"cozy", "outdoors"},
		About:       domain.PersonalInfo{Name: "Sam", Hobbies: []string{"climbing"}},
	}, t0)
	require.NoError(t, err)
	return s
}

// Candidates returns three distinct candidates.
func Candidates() []domain.Candidate {
	return []domain.Candidate{
		{ID: "c1", Title: "Ramen crawl", Cost: decimal.RequireFromString("42.50"), Vibe: "foodie", Tags: []string{"dinner"}},
		{ID: "c2", Title: "Kayak at dusk", Cost: decimal.NewFromInt(60), Vibe: "outdoors", Venue: "Lake Union"},
		{ID: "c3", Title: "Board game cafe", Cost: decimal.NewFromInt(25), Vibe: "cozy"},
	}
}

func partnerB() domain.Preferences {
	return domain.Preferences{Budget: "$", Dietary: []string{"vegetarian"}, About: domain.PersonalInfo{Name: "Riley"}}
}

// NewGame returns a scheduled game with two questions for sessionID.
func NewGame(sessionID domain.SessionID) *domain.IcebreakerGame {
	return domain.NewIcebreakerGame(domain.GameID(domain.NewID()), sessionID, []domain.Question{
		{ID: "q1", Subject: domain.PartyA, Answerer: domain.PartyB, Prompt: "Sam's favorite food?", Options: []string{"pho", "tacos"}, CorrectOption: "pho", Round: 1},
		{ID: "q2", Subject: domain.PartyB, Answerer: domain.PartyA, Prompt: "Riley's hobby?", Options: []string{"chess", "climbing"}, CorrectOption: "chess", Round: 1},
	}, []string{"You both like mornings."}, t0)
}

func assertCandidatesEqual(t *testing.T, want, got []domain.Candidate) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Title, got[i].Title)
		assert.Equal(t, want[i].Vibe, got[i].Vibe)
		assert.Equal(t, want[i].Venue, got[i].Venue)
		assert.Equal(t, len(want[i].Tags), len(got[i].Tags))
		assert.True(t, want[i].Cost.Equal(got[i].Cost), "cost %s != %s", want[i].Cost, got[i].Cost)
	}
}

// SessionStore runs the SessionStore contract against stores built by newStore.
func SessionStore(t *testing.T, newStore func(t *testing.T) domain.SessionStore) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		s := NewSession(t)
		require.NoError(t, store.CreateSession(ctx, s))

		got, err := store.GetSession(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, s.OriginatorContact, got.OriginatorContact)
		assert.Equal(t, domain.StateInitiated, got.State)
		assert.Equal(t, "Seattle", got.PreferencesA.Location)
		assert.Equal(t, []string{"cozy", "outdoors"}, got.PreferencesA.Vibes)
		require.Len(t, got.PreferencesA.TimeWindows, 1)
		assert.True(t, t0.Equal(got.PreferencesA.TimeWindows[0].Start))
		assert.True(t, t0.Equal(got.CreatedAt))
		assert.Nil(t, got.PreferencesB)
		assert.Empty(t, got.Candidates)
	})

	t.Run("duplicate create", func(t *testing.T) {
		store := newStore(t)
		s := NewSession(t)
		require.NoError(t, store.CreateSession(ctx, s))
		assert.ErrorIs(t, store.CreateSession(ctx, s), domain.ErrAlreadyExists)
	})

	t.Run("unknown id", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetSession(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.UpdateSession(ctx, "missing", func(*domain.DateSession) error { return nil })
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update commits and bumps version", func(t *testing.T) {
		store := newStore(t)
		s := NewSession(t)
		require.NoError(t, store.CreateSession(ctx, s))

		updated, err := store.UpdateSession(ctx, s.ID, func(cur *domain.DateSession) error {
			return cur.RecordPartnerB(partnerB(), Candidates(), t0.Add(time.Minute))
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatePartnerBResponded, updated.State)
		assert.Equal(t, s.Version+1, updated.Version)

		got, err := store.GetSession(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatePartnerBResponded, got.State)
		assert.Equal(t, updated.Version, got.Version)
		require.NotNil(t, got.PreferencesB)
		assert.Equal(t, "Riley", got.PreferencesB.About.Name)
		assertCandidatesEqual(t, Candidates(), got.Candidates)
		assert.True(t, t0.Add(time.Minute).Equal(got.UpdatedAt))

		updated, err = store.UpdateSession(ctx, s.ID, func(cur *domain.DateSession) error {
			return cur.SelectShortlist([]domain.CandidateID{"c3", "c1"}, t0.Add(2*time.Minute))
		})
		require.NoError(t, err)
		assert.Equal(t, []domain.CandidateID{"c3", "c1"}, updated.Shortlist)

		_, err = store.UpdateSession(ctx, s.ID, func(cur *domain.DateSession) error {
			return cur.Finalize("c1", t0.Add(3*time.Minute))
		})
		require.NoError(t, err)

		got, err = store.GetSession(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateFinalized, got.State)
		assert.Equal(t, domain.CandidateID("c1"), got.FinalChoice)
		assert.Equal(t, s.Version+3, got.Version)
	})

	t.Run("failed update leaves record untouched", func(t *testing.T) {
		store := newStore(t)
		s := NewSession(t)
		require.NoError(t, store.CreateSession(ctx, s))

		boom := errors.New("boom")
		_, err := store.UpdateSession(ctx, s.ID, func(cur *domain.DateSession) error {
			cur.OriginatorContact = "changed"
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.GetSession(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.OriginatorContact, got.OriginatorContact)
		assert.Equal(t, s.Version, got.Version)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		store := newStore(t)
		s := NewSession(t)
		require.NoError(t, store.CreateSession(ctx, s))

		got, err := store.GetSession(ctx, s.ID)
		require.NoError(t, err)
		got.PreferencesA.Vibes[0] = "mutated"

		again, err := store.GetSession(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "cozy", again.PreferencesA.Vibes[0])
	})

	t.Run("concurrent responses: exactly one wins", func(t *testing.T) {
		store := newStore(t)
		s := NewSession(t)
		require.NoError(t, store.CreateSession(ctx, s))

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = store.UpdateSession(ctx, s.ID, func(cur *domain.DateSession) error {
					return cur.RecordPartnerB(partnerB(), Candidates(), t0)
				})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrInvalidState)
		}
		assert.Equal(t, 1, wins)

		got, err := store.GetSession(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.Version+1, got.Version)
	})
}

// GameStore runs the GameStore contract against stores built by newStore.
func GameStore(t *testing.T, newStore func(t *testing.T) domain.GameStore) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		sid := domain.SessionID(domain.NewID())
		g := NewGame(sid)
		require.NoError(t, store.CreateGame(ctx, g))

		got, err := store.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.SessionID, got.SessionID)
		assert.Equal(t, domain.GameScheduled, got.State)
		assert.Equal(t, g.Questions, got.Questions)
		assert.Equal(t, g.FunFacts, got.FunFacts)
		assert.Nil(t, got.StartedAt)

		bySession, err := store.GetGameBySession(ctx, sid)
		require.NoError(t, err)
		assert.Equal(t, g.ID, bySession.ID)
	})

	t.Run("one game per session", func(t *testing.T) {
		store := newStore(t)
		sid := domain.SessionID(domain.NewID())
		require.NoError(t, store.CreateGame(ctx, NewGame(sid)))
		assert.ErrorIs(t, store.CreateGame(ctx, NewGame(sid)), domain.ErrAlreadyExists)
	})

	t.Run("unknown ids", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetGame(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetGameBySession(ctx, domain.SessionID(domain.NewID()))
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.UpdateGame(ctx, "missing", func(*domain.IcebreakerGame) error { return nil })
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update persists answers and scores", func(t *testing.T) {
		store := newStore(t)
		g := NewGame(domain.SessionID(domain.NewID()))
		require.NoError(t, store.CreateGame(ctx, g))

		_, err := store.UpdateGame(ctx, g.ID, func(cur *domain.IcebreakerGame) error {
			return cur.Start(t0.Add(time.Minute))
		})
		require.NoError(t, err)

		updated, err := store.UpdateGame(ctx, g.ID, func(cur *domain.IcebreakerGame) error {
			_, err := cur.Answer("q1", "pho", domain.PartyB, t0.Add(2*time.Minute))
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.ScoreB)

		got, err := store.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.GameActive, got.State)
		require.NotNil(t, got.StartedAt)
		assert.True(t, t0.Add(time.Minute).Equal(*got.StartedAt))
		require.Len(t, got.Answers, 1)
		assert.True(t, got.Answers[0].IsCorrect)
		assert.Equal(t, 0, got.ScoreA)
		assert.Equal(t, 1, got.ScoreB)
		assert.Equal(t, g.Version+2, got.Version)
	})

	t.Run("concurrent duplicate answers: exactly one recorded", func(t *testing.T) {
		store := newStore(t)
		g := NewGame(domain.SessionID(domain.NewID()))
		require.NoError(t, store.CreateGame(ctx, g))
		_, err := store.UpdateGame(ctx, g.ID, func(cur *domain.IcebreakerGame) error {
			return cur.Start(t0)
		})
		require.NoError(t, err)

		const n = 6
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = store.UpdateGame(ctx, g.ID, func(cur *domain.IcebreakerGame) error {
					_, err := cur.Answer("q2", "chess", domain.PartyA, t0)
					return err
				})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrDuplicateAnswer)
		}
		assert.Equal(t, 1, wins)

		got, err := store.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ScoreA+got.ScoreB)
		assert.Len(t, got.Answers, 1)
	})
}
