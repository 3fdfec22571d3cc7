// Package record is the persisted shape of sessions and games, shared by the
// durable backends. Each field carries json, bson and firestore names so a
// record reads the same in every store.
package record

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PabloGalante/twogether/internal/domain"
)

type TimeWindow struct {
	Start time.Time `json:"start" bson:"start" firestore:"start"`
	End   time.Time `json:"end" bson:"end" firestore:"end"`
}

type PersonalInfo struct {
	Name             string   `json:"name,omitempty" bson:"name,omitempty" firestore:"name,omitempty"`
	Hobbies          []string `json:"hobbies,omitempty" bson:"hobbies,omitempty" firestore:"hobbies,omitempty"`
	FavoriteFood     string   `json:"favorite_food,omitempty" bson:"favorite_food,omitempty" firestore:"favorite_food,omitempty"`
	DreamDestination string   `json:"dream_destination,omitempty" bson:"dream_destination,omitempty" firestore:"dream_destination,omitempty"`
	FunFact          string   `json:"fun_fact,omitempty" bson:"fun_fact,omitempty" firestore:"fun_fact,omitempty"`
}

type Preferences struct {
	Location     string       `json:"location,omitempty" bson:"location,omitempty" firestore:"location,omitempty"`
	TimeWindows  []TimeWindow `json:"time_windows,omitempty" bson:"time_windows,omitempty" firestore:"time_windows,omitempty"`
	Duration     string       `json:"duration,omitempty" bson:"duration,omitempty" firestore:"duration,omitempty"`
	Budget       string       `json:"budget,omitempty" bson:"budget,omitempty" firestore:"budget,omitempty"`
	Dietary      []string     `json:"dietary,omitempty" bson:"dietary,omitempty" firestore:"dietary,omitempty"`
	Vibes        []string     `json:"vibes,omitempty" bson:"vibes,omitempty" firestore:"vibes,omitempty"`
	Dealbreakers []string     `json:"dealbreakers,omitempty" bson:"dealbreakers,omitempty" firestore:"dealbreakers,omitempty"`
	Notes        string       `json:"notes,omitempty" bson:"notes,omitempty" firestore:"notes,omitempty"`
	About        PersonalInfo `json:"about" bson:"about" firestore:"about"`
}

// Candidate stores cost as a decimal string so no backend rounds it.
type Candidate struct {
	ID          string   `json:"id" bson:"id" firestore:"id"`
	Title       string   `json:"title" bson:"title" firestore:"title"`
	Description string   `json:"description,omitempty" bson:"description,omitempty" firestore:"description,omitempty"`
	Cost        string   `json:"cost" bson:"cost" firestore:"cost"`
	Vibe        string   `json:"vibe" bson:"vibe" firestore:"vibe"`
	Tags        []string `json:"tags,omitempty" bson:"tags,omitempty" firestore:"tags,omitempty"`
	Venue       string   `json:"venue,omitempty" bson:"venue,omitempty" firestore:"venue,omitempty"`
	Fallback    bool     `json:"fallback,omitempty" bson:"fallback,omitempty" firestore:"fallback,omitempty"`
}

type Session struct {
	ID                string       `json:"id" bson:"_id" firestore:"id"`
	OriginatorContact string       `json:"originator_contact" bson:"originator_contact" firestore:"originator_contact"`
	PreferencesA      Preferences  `json:"preferences_a" bson:"preferences_a" firestore:"preferences_a"`
	PreferencesB      *Preferences `json:"preferences_b,omitempty" bson:"preferences_b,omitempty" firestore:"preferences_b,omitempty"`
	Candidates        []Candidate  `json:"candidates,omitempty" bson:"candidates,omitempty" firestore:"candidates,omitempty"`
	Shortlist         []string     `json:"shortlist,omitempty" bson:"shortlist,omitempty" firestore:"shortlist,omitempty"`
	FinalChoice       string       `json:"final_choice,omitempty" bson:"final_choice,omitempty" firestore:"final_choice,omitempty"`
	State             string       `json:"state" bson:"state" firestore:"state"`
	Version           int64        `json:"version" bson:"version" firestore:"version"`
	CreatedAt         time.Time    `json:"created_at" bson:"created_at" firestore:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" bson:"updated_at" firestore:"updated_at"`
}

type Question struct {
	ID            string   `json:"id" bson:"id" firestore:"id"`
	Subject       string   `json:"subject" bson:"subject" firestore:"subject"`
	Answerer      string   `json:"answerer" bson:"answerer" firestore:"answerer"`
	Prompt        string   `json:"prompt" bson:"prompt" firestore:"prompt"`
	Options       []string `json:"options" bson:"options" firestore:"options"`
	CorrectOption string   `json:"correct_option" bson:"correct_option" firestore:"correct_option"`
	Round         int      `json:"round" bson:"round" firestore:"round"`
}

type Answer struct {
	QuestionID     string    `json:"question_id" bson:"question_id" firestore:"question_id"`
	Party          string    `json:"party" bson:"party" firestore:"party"`
	SelectedOption string    `json:"selected_option" bson:"selected_option" firestore:"selected_option"`
	IsCorrect      bool      `json:"is_correct" bson:"is_correct" firestore:"is_correct"`
	AnsweredAt     time.Time `json:"answered_at" bson:"answered_at" firestore:"answered_at"`
}

type Game struct {
	ID          string     `json:"id" bson:"_id" firestore:"id"`
	SessionID   string     `json:"session_id" bson:"session_id" firestore:"session_id"`
	Questions   []Question `json:"questions" bson:"questions" firestore:"questions"`
	Answers     []Answer   `json:"answers,omitempty" bson:"answers,omitempty" firestore:"answers,omitempty"`
	FunFacts    []string   `json:"fun_facts,omitempty" bson:"fun_facts,omitempty" firestore:"fun_facts,omitempty"`
	ScoreA      int        `json:"score_a" bson:"score_a" firestore:"score_a"`
	ScoreB      int        `json:"score_b" bson:"score_b" firestore:"score_b"`
	State       string     `json:"state" bson:"state" firestore:"state"`
	Version     int64      `json:"version" bson:"version" firestore:"version"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at" firestore:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at" firestore:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty" firestore:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty" firestore:"completed_at,omitempty"`
}

func fromPreferences(p domain.Preferences) Preferences {
	out := Preferences{
		Location:     p.Location,
		Duration:     p.Duration,
		Budget:       p.Budget,
		Dietary:      p.Dietary,
		Vibes:        p.Vibes,
		Dealbreakers: p.Dealbreakers,
		Notes:        p.Notes,
		About: PersonalInfo{
			Name:             p.About.Name,
			Hobbies:          p.About.Hobbies,
			FavoriteFood:     p.About.FavoriteFood,
			DreamDestination: p.About.DreamDestination,
			FunFact:          p.About.FunFact,
		},
	}
	for _, w := range p.TimeWindows {
		out.TimeWindows = append(out.TimeWindows, TimeWindow{Start: w.Start, End: w.End})
	}
	return out
}

func (p Preferences) toDomain() domain.Preferences {
	out := domain.Preferences{
		Location:     p.Location,
		Duration:     p.Duration,
		Budget:       p.Budget,
		Dietary:      p.Dietary,
		Vibes:        p.Vibes,
		Dealbreakers: p.Dealbreakers,
		Notes:        p.Notes,
		About: domain.PersonalInfo{
			Name:             p.About.Name,
			Hobbies:          p.About.Hobbies,
			FavoriteFood:     p.About.FavoriteFood,
			DreamDestination: p.About.DreamDestination,
			FunFact:          p.About.FunFact,
		},
	}
	for _, w := range p.TimeWindows {
		out.TimeWindows = append(out.TimeWindows, domain.TimeWindow{Start: w.Start, End: w.End})
	}
	return out
}

// FromSession converts a domain session into its persisted shape.
func FromSession(s *domain.DateSession) Session {
	out := Session{
		ID:                string(s.ID),
		OriginatorContact: s.OriginatorContact,
		PreferencesA:      fromPreferences(s.PreferencesA),
		FinalChoice:       string(s.FinalChoice),
		State:             string(s.State),
		Version:           s.Version,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.PreferencesB != nil {
		b := fromPreferences(*s.PreferencesB)
		out.PreferencesB = &b
	}
	for _, c := range s.Candidates {
		out.Candidates = append(out.Candidates, Candidate{
			ID:          string(c.ID),
			Title:       c.Title,
			Description: c.Description,
			Cost:        c.Cost.String(),
			Vibe:        c.Vibe,
			Tags:        c.Tags,
			Venue:       c.Venue,
			Fallback:    c.Fallback,
		})
	}
	for _, id := range s.Shortlist {
		out.Shortlist = append(out.Shortlist, string(id))
	}
	return out
}

// ToDomain converts the record back. It fails only on a corrupt cost.
func (r Session) ToDomain() (*domain.DateSession, error) {
	out := &domain.DateSession{
		ID:                domain.SessionID(r.ID),
		OriginatorContact: r.OriginatorContact,
		PreferencesA:      r.PreferencesA.toDomain(),
		FinalChoice:       domain.CandidateID(r.FinalChoice),
		State:             domain.SessionState(r.State),
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.PreferencesB != nil {
		b := r.PreferencesB.toDomain()
		out.PreferencesB = &b
	}
	for _, c := range r.Candidates {
		cost, err := decimal.NewFromString(c.Cost)
		if err != nil {
			return nil, fmt.Errorf("session %s candidate %s cost %q: %w", r.ID, c.ID, c.Cost, err)
		}
		out.Candidates = append(out.Candidates, domain.Candidate{
			ID:          domain.CandidateID(c.ID),
			Title:       c.Title,
			Description: c.Description,
			Cost:        cost,
			Vibe:        c.Vibe,
			Tags:        c.Tags,
			Venue:       c.Venue,
			Fallback:    c.Fallback,
		})
	}
	for _, id := range r.Shortlist {
		out.Shortlist = append(out.Shortlist, domain.CandidateID(id))
	}
	return out, nil
}

// FromGame converts a domain game into its persisted shape.
func FromGame(g *domain.IcebreakerGame) Game {
	out := Game{
		ID:          string(g.ID),
		SessionID:   string(g.SessionID),
		FunFacts:    g.FunFacts,
		ScoreA:      g.ScoreA,
		ScoreB:      g.ScoreB,
		State:       string(g.State),
		Version:     g.Version,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
		StartedAt:   g.StartedAt,
		CompletedAt: g.CompletedAt,
	}
	for _, q := range g.Questions {
		out.Questions = append(out.Questions, Question{
			ID:            string(q.ID),
			Subject:       string(q.Subject),
			Answerer:      string(q.Answerer),
			Prompt:        q.Prompt,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			Round:         q.Round,
		})
	}
	for _, a := range g.Answers {
		out.Answers = append(out.Answers, Answer{
			QuestionID:     string(a.QuestionID),
			Party:          string(a.Party),
			SelectedOption: a.SelectedOption,
			IsCorrect:      a.IsCorrect,
			AnsweredAt:     a.AnsweredAt,
		})
	}
	return out
}

func (r Game) ToDomain() *domain.IcebreakerGame {
	out := &domain.IcebreakerGame{
		ID:          domain.GameID(r.ID),
		SessionID:   domain.SessionID(r.SessionID),
		FunFacts:    r.FunFacts,
		ScoreA:      r.ScoreA,
		ScoreB:      r.ScoreB,
		State:       domain.GameState(r.State),
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	for _, q := range r.Questions {
		out.Questions = append(out.Questions, domain.Question{
			ID:            domain.QuestionID(q.ID),
			Subject:       domain.Party(q.Subject),
			Answerer:      domain.Party(q.Answerer),
			Prompt:        q.Prompt,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			Round:         q.Round,
		})
	}
	for _, a := range r.Answers {
		out.Answers = append(out.Answers, domain.Answer{
			QuestionID:     domain.QuestionID(a.QuestionID),
			Party:          domain.Party(a.Party),
			SelectedOption: a.SelectedOption,
			IsCorrect:      a.IsCorrect,
			AnsweredAt:     a.AnsweredAt,
		})
	}
	return out
}
