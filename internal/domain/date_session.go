package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxCandidates caps the generated plans kept on a session.
const MaxCandidates = 3

// ShortlistSize is the exact number of candidates partner A narrows down to.
const ShortlistSize = 2

// Candidate is one generated date plan. IDs are stable within a session.
type Candidate struct {
	ID          CandidateID     `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Cost        decimal.Decimal `json:"cost"`
	Vibe        string          `json:"vibe"`
	Tags        []string        `json:"tags,omitempty"`
	Venue       string          `json:"venue,omitempty"`
	Fallback    bool            `json:"fallback,omitempty"`
}

func (c Candidate) Clone() Candidate {
	out := c
	out.Tags = append([]string(nil), c.Tags...)
	return out
}

// DateSession is one negotiation between partner A and partner B. It is the
// long-lived root record; an icebreaker game only references it.
type DateSession struct {
	ID                SessionID
	OriginatorContact string

	PreferencesA Preferences
	PreferencesB *Preferences

	Candidates  []Candidate
	Shortlist   []CandidateID
	FinalChoice CandidateID

	State   SessionState
	Version int64

	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// NewDateSession validates partner A's record and returns a session in the
// Initiated state. No candidates exist yet.
func NewDateSession(id SessionID, contact string, prefsA Preferences, now time.Time) (*DateSession, error) {
	prefsA = NormalizePreferences(prefsA)
	if err := ValidatePartnerA(prefsA); err != nil {
		return nil, err
	}
	if contact == "" {
		return nil, fmt.Errorf("%w: originator contact is required", ErrValidation)
	}

	return &DateSession{
		ID:                id,
		OriginatorContact: contact,
		PreferencesA:      prefsA,
		State:             StateInitiated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (s *DateSession) Clone() *DateSession {
	if s == nil {
		return nil
	}
	out := *s
	out.PreferencesA = s.PreferencesA.Clone()
	if s.PreferencesB != nil {
		b := s.PreferencesB.Clone()
		out.PreferencesB = &b
	}
	out.Candidates = nil
	for _, c := range s.Candidates {
		out.Candidates = append(out.Candidates, c.Clone())
	}
	out.Shortlist = append([]CandidateID(nil), s.Shortlist...)
	return &out
}

// Candidate looks up a candidate by id.
func (s *DateSession) Candidate(id CandidateID) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// ShortlistedCandidates returns the shortlisted candidates in shortlist order.
func (s *DateSession) ShortlistedCandidates() []Candidate {
	out := make([]Candidate, 0, len(s.Shortlist))
	for _, id := range s.Shortlist {
		if c, ok := s.Candidate(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// FinalCandidate returns the chosen plan once the session is finalized.
func (s *DateSession) FinalCandidate() (Candidate, bool) {
	if s.FinalChoice == "" {
		return Candidate{}, false
	}
	return s.Candidate(s.FinalChoice)
}

func (s *DateSession) inShortlist(id CandidateID) bool {
	for _, sid := range s.Shortlist {
		if sid == id {
			return true
		}
	}
	return false
}

// RecordPartnerB stores partner B's preferences together with the generated
// candidates and moves the session to PartnerBResponded.
func (s *DateSession) RecordPartnerB(prefsB Preferences, candidates []Candidate, now time.Time) error {
	if err := CanTransitionSession(s.State, StatePartnerBResponded); err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no candidates to record", ErrInvalidInput)
	}

	b := ForPartnerB(prefsB)
	s.PreferencesB = &b
	s.Candidates = make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		s.Candidates = append(s.Candidates, c.Clone())
	}
	s.State = StatePartnerBResponded
	s.UpdatedAt = now
	return nil
}

// CheckShortlistShape validates the shortlist payload independent of state.
func CheckShortlistShape(ids []CandidateID) error {
	if len(ids) != ShortlistSize {
		return fmt.Errorf("%w: shortlist needs exactly %d candidates, got %d", ErrInvalidInput, ShortlistSize, len(ids))
	}
	if ids[0] == ids[1] {
		return fmt.Errorf("%w: shortlist candidates must be distinct", ErrInvalidInput)
	}
	return nil
}

// SelectShortlist records partner A's two picks.
func (s *DateSession) SelectShortlist(ids []CandidateID, now time.Time) error {
	if err := CheckShortlistShape(ids); err != nil {
		return err
	}
	if err := CanTransitionSession(s.State, StatePartnerASelected); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := s.Candidate(id); !ok {
			return fmt.Errorf("%w: unknown candidate %q", ErrInvalidInput, id)
		}
	}

	s.Shortlist = append([]CandidateID(nil), ids...)
	s.State = StatePartnerASelected
	s.UpdatedAt = now
	return nil
}

// Finalize records partner B's pick out of the shortlist. Finalized is terminal.
func (s *DateSession) Finalize(choice CandidateID, now time.Time) error {
	if err := CanTransitionSession(s.State, StateFinalized); err != nil {
		return err
	}
	if !s.inShortlist(choice) {
		return fmt.Errorf("%w: candidate %q is not on the shortlist", ErrInvalidInput, choice)
	}

	s.FinalChoice = choice
	s.State = StateFinalized
	s.UpdatedAt = now
	return nil
}
