package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PabloGalante/twogether/internal/domain"
)

// MockLLM returns deterministic JSON built from the preferences. Used in local
// mode and tests.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) GenerateJSON(ctx context.Context, genCtx domain.GenerationContext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var out any
	switch genCtx.Kind {
	case domain.GenerateIdeas:
		out = mockIdeas(genCtx.PreferencesA, genCtx.PreferencesB)
	case domain.GenerateQuiz:
		out = mockQuiz(genCtx.PreferencesA, genCtx.PreferencesB)
	default:
		return "", fmt.Errorf("mock llm: unknown generation kind %q", genCtx.Kind)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("mock llm: %w", err)
	}
	return string(b), nil
}

func firstOr(list []string, def string) string {
	if len(list) > 0 && list[0] != "" {
		return list[0]
	}
	return def
}

func mockIdeas(a, b domain.Preferences) map[string]any {
	place := a.Location
	if place == "" {
		place = "town"
	}
	vibe := firstOr(a.Vibes, firstOr(b.Vibes, "cozy"))

	// One more than the cap so callers exercise truncation.
	return map[string]any{
		"ideas": []map[string]any{
			{"id": "idea-1", "title": "Coffee and a walk in " + place, "cost": 15, "vibe": vibe, "tags": []string{"low-key"}, "venue": place},
			{"id": "idea-2", "title": "Dinner at a neighborhood bistro", "cost": 80, "vibe": "foodie", "tags": []string{"dinner"}, "venue": place},
			{"id": "idea-3", "title": "Museum late night", "cost": 50, "vibe": "artsy", "tags": []string{"indoors"}, "venue": place},
			{"id": "idea-4", "title": "Sunset picnic", "cost": 30, "vibe": "outdoors", "tags": []string{"outdoors"}, "venue": place},
		},
	}
}

func mockQuestion(subject domain.Party, who, what, answer string, distractors ...string) map[string]any {
	options := append([]string{answer}, distractors...)
	return map[string]any{
		"subject":        string(subject),
		"prompt":         fmt.Sprintf("What is %s's %s?", who, what),
		"options":        options,
		"correct_option": answer,
	}
}

func nameOr(p domain.Preferences, def string) string {
	if p.About.Name != "" {
		return p.About.Name
	}
	return def
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func mockQuiz(a, b domain.Preferences) map[string]any {
	nameA, nameB := nameOr(a, "partner A"), nameOr(b, "partner B")

	return map[string]any{
		"questions": []map[string]any{
			mockQuestion(domain.PartyA, nameA, "favorite food", valueOr(a.About.FavoriteFood, "pizza"), "sushi", "tacos", "curry"),
			mockQuestion(domain.PartyB, nameB, "favorite food", valueOr(b.About.FavoriteFood, "ramen"), "burgers", "salad", "dumplings"),
			mockQuestion(domain.PartyA, nameA, "dream destination", valueOr(a.About.DreamDestination, "Japan"), "Iceland", "Peru", "Italy"),
			mockQuestion(domain.PartyB, nameB, "dream destination", valueOr(b.About.DreamDestination, "Portugal"), "Kenya", "Canada", "Vietnam"),
			mockQuestion(domain.PartyA, nameA, "top hobby", firstOr(a.About.Hobbies, "reading"), "surfing", "chess", "pottery"),
			mockQuestion(domain.PartyB, nameB, "top hobby", firstOr(b.About.Hobbies, "hiking"), "knitting", "gaming", "baking"),
		},
		"fun_facts": []string{
			fmt.Sprintf("%s and %s both said yes to a %s date.", nameA, nameB, valueOr(a.Duration, "short")),
			"Shared laughter is one of the best predictors of a second date.",
		},
	}
}
