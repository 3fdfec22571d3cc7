package domain

import (
	"fmt"
	"time"
)

// Question is one multiple-choice item. Subject is the partner the question
// is about; Answerer is the partner expected to answer it.
type Question struct {
	ID            QuestionID `json:"id"`
	Subject       Party      `json:"subject"`
	Answerer      Party      `json:"answerer"`
	Prompt        string     `json:"prompt"`
	Options       []string   `json:"options"`
	CorrectOption string     `json:"correct_option"`
	Round         int        `json:"round"`
}

func (q Question) hasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Answer fixes correctness at write time; it is never recomputed.
type Answer struct {
	QuestionID     QuestionID `json:"question_id"`
	Party          Party      `json:"party"`
	SelectedOption string     `json:"selected_option"`
	IsCorrect      bool       `json:"is_correct"`
	AnsweredAt     time.Time  `json:"answered_at"`
}

// IcebreakerGame is the quiz played after a session is finalized. It holds a
// back-reference to the session and never mutates it.
type IcebreakerGame struct {
	ID        GameID
	SessionID SessionID

	Questions []Question
	Answers   []Answer
	FunFacts  []string

	ScoreA int
	ScoreB int

	State   GameState
	Version int64

	CreatedAt   Timestamp
	UpdatedAt   Timestamp
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewIcebreakerGame returns a game in the Scheduled state.
func NewIcebreakerGame(id GameID, sessionID SessionID, questions []Question, funFacts []string, now time.Time) *IcebreakerGame {
	g := &IcebreakerGame{
		ID:        id,
		SessionID: sessionID,
		FunFacts:  append([]string(nil), funFacts...),
		State:     GameScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, q := range questions {
		g.Questions = append(g.Questions, q.clone())
	}
	return g
}

func (q Question) clone() Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	return out
}

func (g *IcebreakerGame) Clone() *IcebreakerGame {
	if g == nil {
		return nil
	}
	out := *g
	out.Questions = nil
	for _, q := range g.Questions {
		out.Questions = append(out.Questions, q.clone())
	}
	out.Answers = append([]Answer(nil), g.Answers...)
	out.FunFacts = append([]string(nil), g.FunFacts...)
	if g.StartedAt != nil {
		t := *g.StartedAt
		out.StartedAt = &t
	}
	if g.CompletedAt != nil {
		t := *g.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// Question looks up a question by id.
func (g *IcebreakerGame) Question(id QuestionID) (Question, bool) {
	for _, q := range g.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AnswerFor returns the recorded answer for a question, if any.
func (g *IcebreakerGame) AnswerFor(id QuestionID) (Answer, bool) {
	for _, a := range g.Answers {
		if a.QuestionID == id {
			return a, true
		}
	}
	return Answer{}, false
}

// CorrectAnswers counts answers marked correct.
func (g *IcebreakerGame) CorrectAnswers() int {
	n := 0
	for _, a := range g.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

func (g *IcebreakerGame) Start(now time.Time) error {
	if g.State != GameScheduled {
		return fmt.Errorf("%w: game is %s, not %s", ErrInvalidState, g.State, GameScheduled)
	}
	if err := CanTransitionGame(g.State, GameActive); err != nil {
		return err
	}
	g.State = GameActive
	g.StartedAt = &now
	g.UpdatedAt = now
	return nil
}

// Answer records party's choice for a question and bumps the party's score
// when it matches the question's correct option.
func (g *IcebreakerGame) Answer(qid QuestionID, selected string, party Party, now time.Time) (Answer, error) {
	if g.State != GameActive {
		return Answer{}, fmt.Errorf("%w: game is %s, answers need %s", ErrInvalidState, g.State, GameActive)
	}
	q, ok := g.Question(qid)
	if !ok {
		return Answer{}, fmt.Errorf("%w: question %q", ErrNotFound, qid)
	}
	if _, answered := g.AnswerFor(qid); answered {
		return Answer{}, fmt.Errorf("%w: question %q already answered", ErrDuplicateAnswer, qid)
	}
	if !party.Valid() {
		return Answer{}, fmt.Errorf("%w: unknown party %q", ErrInvalidInput, party)
	}
	if party != q.Answerer {
		return Answer{}, fmt.Errorf("%w: question %q is answered by partner %s", ErrInvalidInput, qid, q.Answerer)
	}
	if !q.hasOption(selected) {
		return Answer{}, fmt.Errorf("%w: %q is not an option of question %q", ErrInvalidInput, selected, qid)
	}

	a := Answer{
		QuestionID:     qid,
		Party:          party,
		SelectedOption: selected,
		IsCorrect:      selected == q.CorrectOption,
		AnsweredAt:     now,
	}
	g.Answers = append(g.Answers, a)
	if a.IsCorrect {
		switch party {
		case PartyA:
			g.ScoreA++
		case PartyB:
			g.ScoreB++
		}
	}
	g.UpdatedAt = now
	return a, nil
}

// Complete closes an active game. A scheduled game may only complete when it
// has no questions.
func (g *IcebreakerGame) Complete(now time.Time) error {
	switch {
	case g.State == GameActive:
	case g.State == GameScheduled && len(g.Questions) == 0:
	default:
		return fmt.Errorf("%w: cannot complete a %s game", ErrInvalidState, g.State)
	}
	if err := CanTransitionGame(g.State, GameCompleted); err != nil {
		return err
	}
	g.State = GameCompleted
	g.CompletedAt = &now
	g.UpdatedAt = now
	return nil
}

func (g *IcebreakerGame) Cancel(now time.Time) error {
	if err := CanTransitionGame(g.State, GameCancelled); err != nil {
		return err
	}
	g.State = GameCancelled
	g.UpdatedAt = now
	return nil
}
