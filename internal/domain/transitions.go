package domain

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/robbyt/go-fsm"
)

// SessionTransitions lists the legal edges of a date session. Finalized is terminal.
var SessionTransitions = map[string][]string{
	string(StateInitiated):         {string(StatePartnerBResponded)},
	string(StatePartnerBResponded): {string(StatePartnerASelected)},
	string(StatePartnerASelected):  {string(StateFinalized)},
	string(StateFinalized):         {},
}

// GameTransitions lists the legal edges of an icebreaker game. Scheduled may
// jump to Completed only for a game without questions.
var GameTransitions = map[string][]string{
	string(GameScheduled): {string(GameActive), string(GameCompleted), string(GameCancelled)},
	string(GameActive):    {string(GameCompleted), string(GameCancelled)},
	string(GameCompleted): {},
	string(GameCancelled): {},
}

// Records are persisted, so each check builds a short-lived machine at the
// stored state instead of keeping one per session.
var fsmLogHandler slog.Handler = slog.NewJSONHandler(io.Discard, nil)

func checkTransition(table map[string][]string, from, to string) error {
	if _, ok := table[from]; !ok {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidState, from)
	}

	m, err := fsm.New(fsmLogHandler, from, table)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if err := m.Transition(to); err != nil {
		if errors.Is(err, fsm.ErrInvalidStateTransition) {
			return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, from, to)
		}
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}

// CanTransitionSession reports whether a session may move from -> to.
func CanTransitionSession(from, to SessionState) error {
	return checkTransition(SessionTransitions, string(from), string(to))
}

// CanTransitionGame reports whether a game may move from -> to.
func CanTransitionGame(from, to GameState) error {
	return checkTransition(GameTransitions, string(from), string(to))
}

// IsTerminal reports whether no transition leaves s.
func (s SessionState) IsTerminal() bool {
	return len(SessionTransitions[string(s)]) == 0
}

func (s GameState) IsTerminal() bool {
	return len(GameTransitions[string(s)]) == 0
}
