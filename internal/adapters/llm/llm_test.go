package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/twogether/internal/app/genschema"
	"github.com/PabloGalante/twogether/internal/domain"
)

func prefsPair() (domain.Preferences, domain.Preferences) {
	a := domain.Preferences{
		Location: "Seattle",
		Duration: "2 hours",
		Vibes:    []string{"cozy"},
		About:    domain.PersonalInfo{Name: "Sam", FavoriteFood: "pho"},
	}
	b := domain.Preferences{
		Budget: "$$",
		About:  domain.PersonalInfo{Name: "Riley", Hobbies: []string{"climbing"}},
	}
	return a, b
}

func TestMockLLM_IdeasPassSchema(t *testing.T) {
	a, b := prefsPair()
	text, err := NewMockLLM().GenerateJSON(context.Background(), domain.GenerationContext{
		Kind: domain.GenerateIdeas, PreferencesA: a, PreferencesB: b,
	})
	require.NoError(t, err)

	ideas, err := genschema.MustNew().DecodeIdeas(text)
	require.NoError(t, err)
	assert.Len(t, ideas, domain.MaxCandidates+1)
	assert.Contains(t, ideas[0].Title, "Seattle")
}

func TestMockLLM_QuizPassesSchema(t *testing.T) {
	a, b := prefsPair()
	text, err := NewMockLLM().GenerateJSON(context.Background(), domain.GenerationContext{
		Kind: domain.GenerateQuiz, PreferencesA: a, PreferencesB: b,
	})
	require.NoError(t, err)

	quiz, err := genschema.MustNew().DecodeQuiz(text)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 6)
	assert.Equal(t, "pho", quiz.Questions[0].CorrectOption)
	assert.Equal(t, "climbing", quiz.Questions[5].CorrectOption)
	assert.NotEmpty(t, quiz.FunFacts)
}

func TestMockLLM_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMockLLM().GenerateJSON(ctx, domain.GenerationContext{Kind: domain.GenerateIdeas})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildPrompt(t *testing.T) {
	a, b := prefsPair()

	p, err := BuildPrompt(domain.GenerationContext{Kind: domain.GenerateIdeas, PreferencesA: a, PreferencesB: b})
	require.NoError(t, err)
	assert.Contains(t, p.System, `"ideas"`)
	assert.Contains(t, p.User, "Seattle")
	assert.Contains(t, p.User, "exactly 3 date ideas")

	p, err = BuildPrompt(domain.GenerationContext{Kind: domain.GenerateQuiz, PreferencesA: a, PreferencesB: b, MaxItems: 4})
	require.NoError(t, err)
	assert.Contains(t, p.User, "exactly 4 questions")

	_, err = BuildPrompt(domain.GenerationContext{Kind: "poem"})
	assert.Error(t, err)
}
