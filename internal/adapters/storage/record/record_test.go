package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/twogether/internal/adapters/storage/storetest"
	"github.com/PabloGalante/twogether/internal/domain"
)

func TestSessionRecord_KeepsCostExact(t *testing.T) {
	s := storetest.NewSession(t)
	require.NoError(t, s.RecordPartnerB(domain.Preferences{Budget: "$"}, storetest.Candidates(), s.CreatedAt))

	raw, err := json.Marshal(FromSession(s))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"cost":"42.5"`)

	var rec Session
	require.NoError(t, json.Unmarshal(raw, &rec))
	got, err := rec.ToDomain()
	require.NoError(t, err)

	assert.Equal(t, "42.5", got.Candidates[0].Cost.String())
	assert.Equal(t, domain.StatePartnerBResponded, got.State)
	require.NotNil(t, got.PreferencesB)
	assert.Empty(t, got.PreferencesB.Location)
}

func TestSessionRecord_CorruptCost(t *testing.T) {
	rec := Session{ID: "s1", Candidates: []Candidate{{ID: "c1", Cost: "cheap"}}}
	_, err := rec.ToDomain()
	assert.Error(t, err)
}

func TestGameRecord_OptionalTimes(t *testing.T) {
	g := storetest.NewGame("s1")
	now := time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)
	require.NoError(t, g.Start(now))

	got := FromGame(g).ToDomain()
	require.NotNil(t, got.StartedAt)
	assert.True(t, now.Equal(*got.StartedAt))
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, g.Questions, got.Questions)
}
