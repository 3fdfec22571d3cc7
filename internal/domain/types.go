package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string
type GameID string
type CandidateID string
type QuestionID string

// Party identifies one side of the negotiation.
type Party string

const (
	PartyA Party = "A" // originator, proposes time windows and shortlists
	PartyB Party = "B" // responder, makes the final pick
)

func (p Party) Valid() bool {
	return p == PartyA || p == PartyB
}

// Other returns the opposite party.
func (p Party) Other() Party {
	if p == PartyA {
		return PartyB
	}
	return PartyA
}

type SessionState string

const (
	StateInitiated         SessionState = "initiated"
	StatePartnerBResponded SessionState = "partner_b_responded"
	StatePartnerASelected  SessionState = "partner_a_selected"
	StateFinalized         SessionState = "finalized"
)

type GameState string

const (
	GameScheduled GameState = "scheduled"
	GameActive    GameState = "active"
	GameCompleted GameState = "completed"
	GameCancelled GameState = "cancelled"
)

type Timestamp = time.Time

// NewID returns a time-ordered UUIDv7 string.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
