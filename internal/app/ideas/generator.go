package ideas

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/twogether/internal/app/genschema"
	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

//go:embed fallback.yaml
var fallbackYAML []byte

type fallbackDoc struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Cost        string   `yaml:"cost"`
	Vibe        string   `yaml:"vibe"`
	Tags        []string `yaml:"tags"`
	Venue       string   `yaml:"venue"`
}

var fallbackCandidate = mustLoadFallback(fallbackYAML)

func mustLoadFallback(raw []byte) domain.Candidate {
	c, err := loadFallback(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func loadFallback(raw []byte) (domain.Candidate, error) {
	var doc fallbackDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return domain.Candidate{}, fmt.Errorf("ideas: parse fallback: %w", err)
	}
	if doc.ID == "" || doc.Title == "" || doc.Vibe == "" {
		return domain.Candidate{}, errors.New("ideas: fallback needs id, title and vibe")
	}
	cost, err := decimal.NewFromString(doc.Cost)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("ideas: fallback cost: %w", err)
	}
	return domain.Candidate{
		ID:          domain.CandidateID(doc.ID),
		Title:       doc.Title,
		Description: doc.Description,
		Cost:        cost,
		Vibe:        doc.Vibe,
		Tags:        doc.Tags,
		Venue:       doc.Venue,
		Fallback:    true,
	}, nil
}

// Fallback returns the fixed candidate used when generation fails.
func Fallback() domain.Candidate {
	return fallbackCandidate.Clone()
}

// Generator asks the LLM for date ideas and never fails: any upstream problem
// yields exactly the fallback candidate.
type Generator struct {
	llm       domain.LLMClient
	validator *genschema.Validator
	timeout   time.Duration
}

func NewGenerator(llm domain.LLMClient, validator *genschema.Validator, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Generator{
		llm:       llm,
		validator: validator,
		timeout:   timeout,
	}
}

// Generate returns between one and domain.MaxCandidates candidates.
func (g *Generator) Generate(ctx context.Context, sessionID domain.SessionID, prefsA, prefsB domain.Preferences) []domain.Candidate {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)
	start := time.Now()

	candidates, err := g.generate(ctx, sessionID, prefsA, prefsB)
	if err != nil {
		log.Warn("candidate generation failed, using fallback",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return []domain.Candidate{Fallback()}
	}

	log.Info("candidates generated",
		"count", len(candidates),
		"elapsed_ms", time.Since(start).Milliseconds())
	return candidates
}

func (g *Generator) generate(ctx context.Context, sessionID domain.SessionID, prefsA, prefsB domain.Preferences) ([]domain.Candidate, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: no llm configured", domain.ErrUpstream)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.llm.GenerateJSON(ctx, domain.GenerationContext{
		Kind:         domain.GenerateIdeas,
		SessionID:    sessionID,
		PreferencesA: prefsA,
		PreferencesB: prefsB,
		MaxItems:     domain.MaxCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	// A client that ignores ctx may still answer after the deadline.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: generator returned empty output", domain.ErrUpstream)
	}

	candidates, err := g.validator.DecodeIdeas(text)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: generator returned no ideas", domain.ErrUpstream)
	}
	if len(candidates) > domain.MaxCandidates {
		candidates = candidates[:domain.MaxCandidates]
	}
	return candidates, nil
}
