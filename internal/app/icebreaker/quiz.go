package icebreaker

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/twogether/internal/app/genschema"
	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

const (
	// Rounds is the number of quiz rounds; each round has one question per partner.
	Rounds       = 3
	QuestionsMax = 2 * Rounds
	optionCount  = 4
)

//go:embed fallback.yaml
var fallbackYAML []byte

type topic struct {
	Field       string   `yaml:"field"`
	Prompt      string   `yaml:"prompt"`
	Default     string   `yaml:"default"`
	Distractors []string `yaml:"distractors"`
}

type fallbackContent struct {
	Topics   []topic  `yaml:"topics"`
	FunFacts []string `yaml:"fun_facts"`
}

var fallback = mustLoadFallback(fallbackYAML)

func mustLoadFallback(raw []byte) fallbackContent {
	var c fallbackContent
	if err := yaml.Unmarshal(raw, &c); err != nil {
		panic(fmt.Errorf("icebreaker: parse fallback: %w", err))
	}
	if len(c.Topics) != Rounds {
		panic(fmt.Errorf("icebreaker: fallback needs %d topics, has %d", Rounds, len(c.Topics)))
	}
	for _, t := range c.Topics {
		if len(t.Distractors) < optionCount-1 {
			panic(fmt.Errorf("icebreaker: topic %s needs %d distractors", t.Field, optionCount-1))
		}
	}
	return c
}

// Quiz is a ready-to-store question set.
type Quiz struct {
	Questions []domain.Question
	FunFacts  []string
	Fallback  bool
}

// QuizGenerator asks the LLM for a quiz and falls back to a quiz derived from
// the two preference records. It never returns zero questions.
type QuizGenerator struct {
	llm       domain.LLMClient
	validator *genschema.Validator
	timeout   time.Duration
}

func NewQuizGenerator(llm domain.LLMClient, validator *genschema.Validator, timeout time.Duration) *QuizGenerator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &QuizGenerator{llm: llm, validator: validator, timeout: timeout}
}

func (g *QuizGenerator) Generate(ctx context.Context, sessionID domain.SessionID, prefsA, prefsB domain.Preferences) Quiz {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	quiz, err := g.generate(ctx, sessionID, prefsA, prefsB)
	if err != nil {
		log.Warn("quiz generation failed, using fallback", "error", err)
		return FallbackQuiz(prefsA, prefsB)
	}
	log.Info("quiz generated", "questions", len(quiz.Questions))
	return quiz
}

func (g *QuizGenerator) generate(ctx context.Context, sessionID domain.SessionID, prefsA, prefsB domain.Preferences) (Quiz, error) {
	if g.llm == nil {
		return Quiz{}, fmt.Errorf("%w: no llm configured", domain.ErrUpstream)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.llm.GenerateJSON(ctx, domain.GenerationContext{
		Kind:         domain.GenerateQuiz,
		SessionID:    sessionID,
		PreferencesA: prefsA,
		PreferencesB: prefsB,
		MaxItems:     QuestionsMax,
	})
	if err != nil {
		return Quiz{}, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	if err := ctx.Err(); err != nil {
		return Quiz{}, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	if strings.TrimSpace(text) == "" {
		return Quiz{}, fmt.Errorf("%w: generator returned empty output", domain.ErrUpstream)
	}

	generated, err := g.validator.DecodeQuiz(text)
	if err != nil {
		return Quiz{}, err
	}
	return balance(generated)
}

// balance keeps the first Rounds questions about each partner and interleaves
// them A, B per round.
func balance(generated *genschema.GeneratedQuiz) (Quiz, error) {
	var aboutA, aboutB []genschema.GeneratedQuestion
	for _, q := range generated.Questions {
		switch q.Subject {
		case domain.PartyA:
			aboutA = append(aboutA, q)
		case domain.PartyB:
			aboutB = append(aboutB, q)
		}
	}
	if len(aboutA) < Rounds || len(aboutB) < Rounds {
		return Quiz{}, fmt.Errorf("%w: quiz is unbalanced (%d about A, %d about B)", domain.ErrUpstream, len(aboutA), len(aboutB))
	}

	quiz := Quiz{FunFacts: nonEmpty(generated.FunFacts)}
	for round := 1; round <= Rounds; round++ {
		for _, q := range []genschema.GeneratedQuestion{aboutA[round-1], aboutB[round-1]} {
			quiz.Questions = append(quiz.Questions, domain.Question{
				ID:            questionID(len(quiz.Questions)),
				Subject:       q.Subject,
				Answerer:      q.Subject.Other(),
				Prompt:        strings.TrimSpace(q.Prompt),
				Options:       append([]string(nil), q.Options...),
				CorrectOption: q.CorrectOption,
				Round:         round,
			})
		}
	}
	if len(quiz.FunFacts) == 0 {
		quiz.FunFacts = append([]string(nil), fallback.FunFacts...)
	}
	return quiz, nil
}

func questionID(i int) domain.QuestionID {
	return domain.QuestionID(fmt.Sprintf("q%d", i+1))
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func answerFor(t topic, p domain.Preferences) string {
	var v string
	switch t.Field {
	case "favorite_food":
		v = p.About.FavoriteFood
	case "dream_destination":
		v = p.About.DreamDestination
	case "hobby":
		if len(p.About.Hobbies) > 0 {
			v = p.About.Hobbies[0]
		}
	}
	if v = strings.TrimSpace(v); v == "" {
		return t.Default
	}
	return v
}

// options returns the answer plus distractors that differ from it, with the
// answer rotated to position shift.
func options(answer string, distractors []string, shift int) []string {
	opts := make([]string, 0, optionCount)
	for _, d := range distractors {
		if len(opts) == optionCount-1 {
			break
		}
		if !strings.EqualFold(d, answer) {
			opts = append(opts, d)
		}
	}
	pos := shift % (len(opts) + 1)
	opts = append(opts, "")
	copy(opts[pos+1:], opts[pos:])
	opts[pos] = answer
	return opts
}

func displayName(p domain.Preferences, party domain.Party) string {
	if p.About.Name != "" {
		return p.About.Name
	}
	return "partner " + string(party)
}

// FallbackQuiz derives a quiz from the two preference records alone. The same
// input always yields the same quiz.
func FallbackQuiz(prefsA, prefsB domain.Preferences) Quiz {
	quiz := Quiz{Fallback: true}
	subjects := []struct {
		party domain.Party
		prefs domain.Preferences
	}{
		{domain.PartyA, prefsA},
		{domain.PartyB, prefsB},
	}

	for round := 1; round <= Rounds; round++ {
		t := fallback.Topics[round-1]
		for _, s := range subjects {
			answer := answerFor(t, s.prefs)
			idx := len(quiz.Questions)
			quiz.Questions = append(quiz.Questions, domain.Question{
				ID:            questionID(idx),
				Subject:       s.party,
				Answerer:      s.party.Other(),
				Prompt:        strings.ReplaceAll(t.Prompt, "{name}", displayName(s.prefs, s.party)),
				Options:       options(answer, t.Distractors, idx),
				CorrectOption: answer,
				Round:         round,
			})
		}
	}

	if shared := sharedVibes(prefsA.Vibes, prefsB.Vibes); len(shared) > 0 {
		quiz.FunFacts = append(quiz.FunFacts, fmt.Sprintf("You both said you like %s dates.", strings.Join(shared, " and ")))
	}
	quiz.FunFacts = append(quiz.FunFacts, fallback.FunFacts...)
	return quiz
}

func sharedVibes(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, v := range b {
		in[domain.NormalizeTag(v)] = true
	}
	var out []string
	for _, v := range a {
		if v = domain.NormalizeTag(v); in[v] {
			out = append(out, v)
		}
	}
	return out
}
