package ideas

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/twogether/internal/app/genschema"
	"github.com/PabloGalante/twogether/internal/domain"
)

type stubLLM struct {
	text  string
	err   error
	delay time.Duration
	calls int
	got   domain.GenerationContext
}

func (s *stubLLM) GenerateJSON(ctx context.Context, genCtx domain.GenerationContext) (string, error) {
	s.calls++
	s.got = genCtx
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

const fourIdeas = `{"ideas":[
 {"id":"a","title":"Ramen crawl","cost":40,"vibe":"foodie"},
 {"id":"b","title":"Kayak at dusk","cost":55.50,"vibe":"outdoors"},
 {"id":"c","title":"Board game cafe","cost":25,"vibe":"cozy"},
 {"id":"d","title":"Jazz bar","cost":60,"vibe":"music"}]}`

func newGen(llm domain.LLMClient, timeout time.Duration) *Generator {
	return NewGenerator(llm, genschema.MustNew(), timeout)
}

func assertFallback(t *testing.T, got []domain.Candidate) {
	t.Helper()
	require.Len(t, got, 1)
	assert.Equal(t, Fallback(), got[0])
	assert.True(t, got[0].Fallback)
}

func TestFallbackContent(t *testing.T) {
	fb := Fallback()
	assert.Equal(t, domain.CandidateID("fallback-1"), fb.ID)
	assert.NotEmpty(t, fb.Title)
	assert.Equal(t, "20", fb.Cost.String())
	assert.True(t, fb.Fallback)

	fb.Tags[0] = "mutated"
	assert.Equal(t, "coffee", Fallback().Tags[0])
}

func TestLoadFallback_Rejects(t *testing.T) {
	_, err := loadFallback([]byte("id: x\ntitle: y\n"))
	assert.Error(t, err)

	_, err = loadFallback([]byte("id: x\ntitle: y\nvibe: z\ncost: lots\n"))
	assert.Error(t, err)

	_, err = loadFallback([]byte("::"))
	assert.Error(t, err)
}

func TestGenerate_TruncatesToMax(t *testing.T) {
	llm := &stubLLM{text: fourIdeas}

	got := newGen(llm, time.Second).Generate(context.Background(), "s1",
		domain.Preferences{Location: "Seattle"}, domain.Preferences{Budget: "$$"})

	require.Len(t, got, domain.MaxCandidates)
	assert.Equal(t, domain.CandidateID("a"), got[0].ID)
	assert.Equal(t, "55.5", got[1].Cost.String())
	assert.False(t, got[0].Fallback)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, domain.GenerateIdeas, llm.got.Kind)
	assert.Equal(t, domain.SessionID("s1"), llm.got.SessionID)
	assert.Equal(t, "Seattle", llm.got.PreferencesA.Location)
	assert.Equal(t, domain.MaxCandidates, llm.got.MaxItems)
}

func TestGenerate_AcceptsFencedOutput(t *testing.T) {
	llm := &stubLLM{text: "```json\n" + `{"ideas":[{"id":"x","title":"Picnic","cost":10,"vibe":"outdoors"}]}` + "\n```"}

	got := newGen(llm, time.Second).Generate(context.Background(), "s1", domain.Preferences{}, domain.Preferences{})

	require.Len(t, got, 1)
	assert.Equal(t, "Picnic", got[0].Title)
}

func TestGenerate_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		llm  *stubLLM
	}{
		{"upstream error", &stubLLM{err: errors.New("quota exceeded")}},
		{"malformed json", &stubLLM{text: `{"ideas": [`}},
		{"wrong shape", &stubLLM{text: `{"ideas":[{"id":"x","cost":10,"vibe":"v"}]}`}},
		{"empty list", &stubLLM{text: `{"ideas":[]}`}},
		{"empty text", &stubLLM{text: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newGen(tt.llm, time.Second).Generate(context.Background(), "s1", domain.Preferences{}, domain.Preferences{})
			assertFallback(t, got)
		})
	}
}

func TestGenerate_FallbackOnTimeout(t *testing.T) {
	llm := &stubLLM{text: fourIdeas, delay: time.Second}

	start := time.Now()
	got := newGen(llm, 20*time.Millisecond).Generate(context.Background(), "s1", domain.Preferences{}, domain.Preferences{})

	assertFallback(t, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGenerate_NilClient(t *testing.T) {
	got := newGen(nil, time.Second).Generate(context.Background(), "s1", domain.Preferences{}, domain.Preferences{})
	assertFallback(t, got)
}
