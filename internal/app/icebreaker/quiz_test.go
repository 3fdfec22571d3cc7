package icebreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/twogether/internal/adapters/llm"
	"github.com/PabloGalante/twogether/internal/app/genschema"
	"github.com/PabloGalante/twogether/internal/domain"
)

func prefsA() domain.Preferences {
	return domain.Preferences{
		Location: "Seattle",
		Vibes:    []string{"cozy", "outdoors"},
		About: domain.PersonalInfo{
			Name:         "Sam",
			FavoriteFood: "pho",
			Hobbies:      []string{"climbing"},
		},
	}
}

func prefsB() domain.Preferences {
	return domain.Preferences{
		Vibes: []string{"Outdoors"},
		About: domain.PersonalInfo{Name: "Riley", DreamDestination: "Peru"},
	}
}

func assertWellFormed(t *testing.T, quiz Quiz) {
	t.Helper()
	require.Len(t, quiz.Questions, QuestionsMax)
	seen := map[domain.QuestionID]bool{}
	for i, q := range quiz.Questions {
		assert.False(t, seen[q.ID], "duplicate id %s", q.ID)
		seen[q.ID] = true
		assert.Equal(t, i/2+1, q.Round)
		if i%2 == 0 {
			assert.Equal(t, domain.PartyA, q.Subject)
		} else {
			assert.Equal(t, domain.PartyB, q.Subject)
		}
		assert.Equal(t, q.Subject.Other(), q.Answerer)
		assert.Contains(t, q.Options, q.CorrectOption)
	}
	assert.NotEmpty(t, quiz.FunFacts)
}

func TestFallbackQuiz(t *testing.T) {
	quiz := FallbackQuiz(prefsA(), prefsB())

	assert.True(t, quiz.Fallback)
	assertWellFormed(t, quiz)

	q1 := quiz.Questions[0]
	assert.Equal(t, "What is Sam's favorite food?", q1.Prompt)
	assert.Equal(t, "pho", q1.CorrectOption)
	assert.Len(t, q1.Options, 4)

	// Riley has no favorite food, so the default is used.
	assert.Equal(t, "pizza", quiz.Questions[1].CorrectOption)
	assert.Equal(t, "Peru", quiz.Questions[3].CorrectOption)
	assert.Equal(t, "climbing", quiz.Questions[4].CorrectOption)

	for _, q := range quiz.Questions {
		assert.Len(t, q.Options, 4)
		count := 0
		for _, o := range q.Options {
			if o == q.CorrectOption {
				count++
			}
		}
		assert.Equal(t, 1, count, "question %s", q.ID)
	}

	assert.Equal(t, "You both said you like outdoors dates.", quiz.FunFacts[0])
	assert.Equal(t, quiz, FallbackQuiz(prefsA(), prefsB()), "deterministic")
}

func TestFallbackQuiz_NoPersonalInfo(t *testing.T) {
	quiz := FallbackQuiz(domain.Preferences{}, domain.Preferences{})

	assertWellFormed(t, quiz)
	assert.Equal(t, "What is partner A's favorite food?", quiz.Questions[0].Prompt)
	assert.Equal(t, fallback.FunFacts, quiz.FunFacts)
}

func TestOptions_RotatesAnswer(t *testing.T) {
	d := []string{"x", "y", "z", "w"}
	for shift := 0; shift < 4; shift++ {
		opts := options("ans", d, shift)
		require.Len(t, opts, 4)
		assert.Equal(t, "ans", opts[shift])
	}
	assert.NotContains(t, options("Sushi", []string{"sushi", "a", "b", "c"}, 0)[1:], "sushi")
}

type stubLLM struct {
	text string
	err  error
}

func (s stubLLM) GenerateJSON(context.Context, domain.GenerationContext) (string, error) {
	return s.text, s.err
}

func TestQuizGenerator_UsesLLM(t *testing.T) {
	g := NewQuizGenerator(llm.NewMockLLM(), genschema.MustNew(), time.Second)

	quiz := g.Generate(context.Background(), "s1", prefsA(), prefsB())

	assert.False(t, quiz.Fallback)
	assertWellFormed(t, quiz)
	assert.Equal(t, "pho", quiz.Questions[0].CorrectOption)
}

func TestQuizGenerator_Fallback(t *testing.T) {
	tests := []struct {
		name string
		llm  domain.LLMClient
	}{
		{"error", stubLLM{err: errors.New("503")}},
		{"empty", stubLLM{text: "  "}},
		{"malformed", stubLLM{text: `{"questions": 3}`}},
		{"unbalanced", stubLLM{text: `{"questions":[
			{"subject":"A","prompt":"p","options":["a","b"],"correct_option":"a"}],"fun_facts":[]}`}},
		{"nil client", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz := NewQuizGenerator(tt.llm, genschema.MustNew(), time.Second).Generate(context.Background(), "s1", prefsA(), prefsB())
			assert.True(t, quiz.Fallback)
			assertWellFormed(t, quiz)
		})
	}
}
