// Package genschema validates LLM output against strict CUE definitions and
// decodes it into domain types.
package genschema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/PabloGalante/twogether/internal/domain"
)

//go:embed schema.cue
var schemaSrc string

// GeneratedQuestion is a quiz item as produced by the LLM, before ids,
// answerers and rounds are assigned.
type GeneratedQuestion struct {
	Subject       domain.Party `json:"subject"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options"`
	CorrectOption string       `json:"correct_option"`
}

type GeneratedQuiz struct {
	Questions []GeneratedQuestion `json:"questions"`
	FunFacts  []string            `json:"fun_facts"`
}

type ideasDoc struct {
	Ideas []domain.Candidate `json:"ideas"`
}

// Validator holds the compiled definitions. cue.Context is not safe for
// concurrent use, so validation is serialized.
type Validator struct {
	mu    sync.Mutex
	ctx   *cue.Context
	ideas cue.Value
	quiz  cue.Value
}

func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile generation schema: %w", err)
	}

	ideas := root.LookupPath(cue.ParsePath("#Ideas"))
	if err := ideas.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Ideas: %w", err)
	}
	quiz := root.LookupPath(cue.ParsePath("#Quiz"))
	if err := quiz.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Quiz: %w", err)
	}

	return &Validator{ctx: ctx, ideas: ideas, quiz: quiz}, nil
}

// MustNew is New for package-level wiring; it panics on a broken schema.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Validator) check(def cue.Value, raw []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data := v.ctx.CompileBytes(raw, cue.Filename("generated.json"))
	if err := data.Err(); err != nil {
		return fmt.Errorf("%w: malformed generator output: %v", domain.ErrUpstream, err)
	}
	if err := def.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: generator output violates schema: %v", domain.ErrUpstream, err)
	}
	return nil
}

// DecodeIdeas validates and decodes a candidate list.
func (v *Validator) DecodeIdeas(text string) ([]domain.Candidate, error) {
	raw := []byte(CleanJSON(text))
	if err := v.check(v.ideas, raw); err != nil {
		return nil, err
	}

	var doc ideasDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode ideas: %v", domain.ErrUpstream, err)
	}

	seen := make(map[domain.CandidateID]bool, len(doc.Ideas))
	for i := range doc.Ideas {
		c := &doc.Ideas[i]
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: duplicate idea id %q", domain.ErrUpstream, c.ID)
		}
		seen[c.ID] = true
		c.Title = strings.TrimSpace(c.Title)
		c.Vibe = domain.NormalizeTag(c.Vibe)
		c.Fallback = false
	}
	return doc.Ideas, nil
}

// DecodeQuiz validates and decodes a quiz. Each question's correct option must
// be one of its options.
func (v *Validator) DecodeQuiz(text string) (*GeneratedQuiz, error) {
	raw := []byte(CleanJSON(text))
	if err := v.check(v.quiz, raw); err != nil {
		return nil, err
	}

	var quiz GeneratedQuiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return nil, fmt.Errorf("%w: decode quiz: %v", domain.ErrUpstream, err)
	}

	for i, q := range quiz.Questions {
		found := false
		for _, o := range q.Options {
			if o == q.CorrectOption {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: question %d correct option is not among its options", domain.ErrUpstream, i)
		}
	}
	return &quiz, nil
}

// CleanJSON strips markdown code fences models like to wrap JSON in.
func CleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
