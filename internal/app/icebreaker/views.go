package icebreaker

import (
	"time"

	"github.com/PabloGalante/twogether/internal/domain"
)

// QuestionView hides the correct option until the question is answered.
type QuestionView struct {
	ID            domain.QuestionID `json:"id"`
	Subject       domain.Party      `json:"subject"`
	Answerer      domain.Party      `json:"answerer"`
	Prompt        string            `json:"prompt"`
	Options       []string          `json:"options"`
	Round         int               `json:"round"`
	Answered      bool              `json:"answered"`
	CorrectOption string            `json:"correct_option,omitempty"`
}

// GameView is what either partner sees while playing. Fun facts appear once
// the game is completed.
type GameView struct {
	ID          domain.GameID    `json:"id"`
	SessionID   domain.SessionID `json:"session_id"`
	State       domain.GameState `json:"state"`
	Questions   []QuestionView   `json:"questions"`
	Answers     []domain.Answer  `json:"answers"`
	ScoreA      int              `json:"score_a"`
	ScoreB      int              `json:"score_b"`
	FunFacts    []string         `json:"fun_facts,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Snapshot is the immutable result of a completed game.
type Snapshot struct {
	GameID         domain.GameID `json:"game_id"`
	ScoreA         int           `json:"score_a"`
	ScoreB         int           `json:"score_b"`
	CorrectAnswers int           `json:"correct_answers"`
	TotalQuestions int           `json:"total_questions"`
	FunFacts       []string      `json:"fun_facts"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

func viewOf(g *domain.IcebreakerGame) *GameView {
	v := &GameView{
		ID:          g.ID,
		SessionID:   g.SessionID,
		State:       g.State,
		Questions:   make([]QuestionView, 0, len(g.Questions)),
		Answers:     append([]domain.Answer{}, g.Answers...),
		ScoreA:      g.ScoreA,
		ScoreB:      g.ScoreB,
		StartedAt:   g.StartedAt,
		CompletedAt: g.CompletedAt,
	}
	for _, q := range g.Questions {
		qv := QuestionView{
			ID:       q.ID,
			Subject:  q.Subject,
			Answerer: q.Answerer,
			Prompt:   q.Prompt,
			Options:  append([]string(nil), q.Options...),
			Round:    q.Round,
		}
		if _, ok := g.AnswerFor(q.ID); ok {
			qv.Answered = true
			qv.CorrectOption = q.CorrectOption
		}
		v.Questions = append(v.Questions, qv)
	}
	if g.State == domain.GameCompleted {
		v.FunFacts = append([]string(nil), g.FunFacts...)
	}
	return v
}

func snapshotOf(g *domain.IcebreakerGame) *Snapshot {
	return &Snapshot{
		GameID:         g.ID,
		ScoreA:         g.ScoreA,
		ScoreB:         g.ScoreB,
		CorrectAnswers: g.CorrectAnswers(),
		TotalQuestions: len(g.Questions),
		FunFacts:       append([]string{}, g.FunFacts...),
		CompletedAt:    g.CompletedAt,
	}
}
