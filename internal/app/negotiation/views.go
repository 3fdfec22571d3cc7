package negotiation

import (
	"time"

	"github.com/PabloGalante/twogether/internal/domain"
)

// SessionSummary is what partner B sees before responding: enough to decide,
// nothing generated.
type SessionSummary struct {
	ID          domain.SessionID    `json:"id"`
	State       domain.SessionState `json:"state"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Location    string              `json:"location"`
	Duration    string              `json:"duration"`
	TimeWindows []domain.TimeWindow `json:"proposed_time_windows"`
}

// Results is partner A's view: every candidate plus the picks so far.
type Results struct {
	ID          domain.SessionID     `json:"id"`
	State       domain.SessionState  `json:"state"`
	Candidates  []domain.Candidate   `json:"candidates"`
	Shortlist   []domain.CandidateID `json:"shortlist"`
	FinalChoice domain.CandidateID   `json:"final_choice,omitempty"`
}

// ShortlistView is partner B's final-pick view. Candidates partner A did not
// shortlist are never shown.
type ShortlistView struct {
	ID          domain.SessionID    `json:"id"`
	State       domain.SessionState `json:"state"`
	Shortlist   []domain.Candidate  `json:"shortlist"`
	FinalChoice domain.CandidateID  `json:"final_choice,omitempty"`
}

func summaryOf(s *domain.DateSession) *SessionSummary {
	return &SessionSummary{
		ID:          s.ID,
		State:       s.State,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Location:    s.PreferencesA.Location,
		Duration:    s.PreferencesA.Duration,
		TimeWindows: append([]domain.TimeWindow{}, s.PreferencesA.TimeWindows...),
	}
}

func resultsOf(s *domain.DateSession) *Results {
	out := &Results{
		ID:          s.ID,
		State:       s.State,
		Candidates:  []domain.Candidate{},
		Shortlist:   append([]domain.CandidateID{}, s.Shortlist...),
		FinalChoice: s.FinalChoice,
	}
	for _, c := range s.Candidates {
		out.Candidates = append(out.Candidates, c.Clone())
	}
	return out
}

func shortlistOf(s *domain.DateSession) *ShortlistView {
	return &ShortlistView{
		ID:          s.ID,
		State:       s.State,
		Shortlist:   append([]domain.Candidate{}, s.ShortlistedCandidates()...),
		FinalChoice: s.FinalChoice,
	}
}
