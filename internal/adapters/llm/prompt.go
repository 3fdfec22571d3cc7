package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PabloGalante/twogether/internal/domain"
)

const ideasSystemPrompt = `
You are a date planner helping two people agree on a first date.

You receive the preferences of partner A (who proposed the date) and partner B (who responded).
Propose concrete, bookable date plans that respect BOTH partners:
- Stay inside the location, duration and budget partner A proposed.
- Never violate a dealbreaker or dietary restriction of either partner.
- Prefer plans that match vibes both partners share.

Respond with ONLY valid JSON (no markdown, no code fences, no explanations):

{
  "ideas": [
    {
      "id": "idea-1",
      "title": "Short title, at most 80 characters",
      "description": "One or two sentences",
      "cost": 40,
      "vibe": "one word category such as cozy, outdoors, foodie, artsy, active",
      "tags": ["short", "tags"],
      "venue": "Venue or neighborhood"
    }
  ]
}

Rules:
- ids are idea-1, idea-2, ... and unique.
- cost is the estimated total for two people in USD, as a number.
`

const quizSystemPrompt = `
You write a light-hearted icebreaker quiz for two people who just planned a date together.

Each question is ABOUT one partner ("subject": "A" or "B") and will be answered by the OTHER partner.
Use only facts present in the partner profiles. Keep it kind and playful.

Respond with ONLY valid JSON (no markdown, no code fences, no explanations):

{
  "questions": [
    {
      "subject": "A",
      "prompt": "What is partner A's favorite food?",
      "options": ["four", "short", "answer", "options"],
      "correct_option": "one of the options, copied exactly"
    }
  ],
  "fun_facts": ["Something the two partners have in common"]
}

Rules:
- Alternate subjects: A, B, A, B, ...
- Exactly four options per question; the correct option appears exactly once.
- Two or three fun facts.
`

// Prompt represents the system prompt + the content to send as "user".
type Prompt struct {
	System string
	User   string
}

// BuildPrompt builds the system prompt and the user content for a generation request.
func BuildPrompt(genCtx domain.GenerationContext) (Prompt, error) {
	profiles, err := json.MarshalIndent(map[string]domain.Preferences{
		"partner_a": genCtx.PreferencesA,
		"partner_b": genCtx.PreferencesB,
	}, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("encode preferences: %w", err)
	}

	var user strings.Builder
	user.WriteString("Partner profiles:\n")
	user.Write(profiles)
	user.WriteString("\n\n")

	switch genCtx.Kind {
	case domain.GenerateIdeas:
		fmt.Fprintf(&user, "Propose exactly %d date ideas.", maxItems(genCtx, domain.MaxCandidates))
		return Prompt{System: ideasSystemPrompt, User: user.String()}, nil
	case domain.GenerateQuiz:
		fmt.Fprintf(&user, "Write exactly %d questions.", maxItems(genCtx, 6))
		return Prompt{System: quizSystemPrompt, User: user.String()}, nil
	default:
		return Prompt{}, fmt.Errorf("unknown generation kind %q", genCtx.Kind)
	}
}

func maxItems(genCtx domain.GenerationContext, def int) int {
	if genCtx.MaxItems > 0 {
		return genCtx.MaxItems
	}
	return def
}
