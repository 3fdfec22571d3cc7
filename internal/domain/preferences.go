package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxNameLen   = 60
	maxHobbies   = 5
	maxHobbyLen  = 60
	maxTagValues = 10
)

// TimeWindow is a proposed slot for the date.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PersonalInfo feeds the icebreaker quiz. Optional for both partners.
type PersonalInfo struct {
	Name             string   `json:"name,omitempty"`
	Hobbies          []string `json:"hobbies,omitempty"`
	FavoriteFood     string   `json:"favorite_food,omitempty"`
	DreamDestination string   `json:"dream_destination,omitempty"`
	FunFact          string   `json:"fun_fact,omitempty"`
}

// Preferences is the structured record each partner submits. Location and
// TimeWindows are authored by partner A only.
type Preferences struct {
	Location     string       `json:"location,omitempty"`
	TimeWindows  []TimeWindow `json:"time_windows,omitempty"`
	Duration     string       `json:"duration,omitempty"`
	Budget       string       `json:"budget,omitempty"`
	Dietary      []string     `json:"dietary,omitempty"`
	Vibes        []string     `json:"vibes,omitempty"`
	Dealbreakers []string     `json:"dealbreakers,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	About        PersonalInfo `json:"about"`
}

func (p Preferences) Clone() Preferences {
	out := p
	out.TimeWindows = append([]TimeWindow(nil), p.TimeWindows...)
	out.Dietary = append([]string(nil), p.Dietary...)
	out.Vibes = append([]string(nil), p.Vibes...)
	out.Dealbreakers = append([]string(nil), p.Dealbreakers...)
	out.About.Hobbies = append([]string(nil), p.About.Hobbies...)
	return out
}

// NormalizePreferences trims free text and folds tag lists to lower case
// without duplicates.
func NormalizePreferences(p Preferences) Preferences {
	out := p.Clone()
	out.Location = strings.TrimSpace(out.Location)
	out.Duration = strings.TrimSpace(out.Duration)
	out.Budget = strings.TrimSpace(out.Budget)
	out.Notes = strings.TrimSpace(out.Notes)
	out.Dietary = normalizeTags(out.Dietary)
	out.Vibes = normalizeTags(out.Vibes)
	out.Dealbreakers = normalizeTags(out.Dealbreakers)

	out.About.Name = strings.TrimSpace(out.About.Name)
	out.About.FavoriteFood = strings.TrimSpace(out.About.FavoriteFood)
	out.About.DreamDestination = strings.TrimSpace(out.About.DreamDestination)
	out.About.FunFact = strings.TrimSpace(out.About.FunFact)
	for i, h := range out.About.Hobbies {
		out.About.Hobbies[i] = strings.TrimSpace(h)
	}
	return out
}

// NormalizeTag lower-cases and trims a single tag.
func NormalizeTag(s string) string {
	// Casers are stateful, so one per call.
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

func normalizeTags(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		t := NormalizeTag(raw)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ValidatePartnerA checks the fields required to open a session: location,
// at least one time window and a duration. Failures wrap ErrValidation.
func ValidatePartnerA(p Preferences) error {
	var problems []error

	if p.Location == "" {
		problems = append(problems, errors.New("location is required"))
	}
	if len(p.TimeWindows) == 0 {
		problems = append(problems, errors.New("at least one time window is required"))
	}
	for i, w := range p.TimeWindows {
		if w.Start.IsZero() || w.End.IsZero() {
			problems = append(problems, fmt.Errorf("time window %d needs start and end", i))
			continue
		}
		if !w.End.After(w.Start) {
			problems = append(problems, fmt.Errorf("time window %d ends before it starts", i))
		}
	}
	if p.Duration == "" {
		problems = append(problems, errors.New("duration is required"))
	}
	problems = append(problems, validateCommon(p)...)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrValidation, errors.Join(problems...))
	}
	return nil
}

// ValidatePartnerB applies the same personal-info and tag limits as partner A.
// Failures wrap ErrInvalidInput.
func ValidatePartnerB(p Preferences) error {
	if problems := validateCommon(p); len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(problems...))
	}
	return nil
}

func validateCommon(p Preferences) []error {
	var problems []error

	if len(p.About.Name) > maxNameLen {
		problems = append(problems, fmt.Errorf("name longer than %d characters", maxNameLen))
	}
	if len(p.About.Hobbies) > maxHobbies {
		problems = append(problems, fmt.Errorf("at most %d hobbies", maxHobbies))
	}
	for i, h := range p.About.Hobbies {
		if h == "" || len(h) > maxHobbyLen {
			problems = append(problems, fmt.Errorf("hobby %d must be 1-%d characters", i, maxHobbyLen))
		}
	}
	for _, field := range []struct {
		name string
		tags []string
	}{
		{"dietary", p.Dietary},
		{"vibes", p.Vibes},
		{"dealbreakers", p.Dealbreakers},
	} {
		if len(field.tags) > maxTagValues {
			problems = append(problems, fmt.Errorf("at most %d %s", maxTagValues, field.name))
		}
	}
	return problems
}

// ForPartnerB drops the fields only partner A may author.
func ForPartnerB(p Preferences) Preferences {
	out := p.Clone()
	out.Location = ""
	out.TimeWindows = nil
	return out
}
