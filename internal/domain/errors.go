package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValidation      = errors.New("validation error")
	ErrDuplicateAnswer = errors.New("duplicate answer")
	ErrUpstream        = errors.New("upstream failure")

	// ErrConflict is returned by stores when a compare-and-swap loses a race
	// more times than the store is willing to retry.
	ErrConflict = errors.New("concurrent modification")

	// ErrAlreadyExists is returned when a record (or the game of a session)
	// is created twice.
	ErrAlreadyExists = errors.New("already exists")
)

// Kind is the stable, client-facing name of an error class.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidState    Kind = "invalid_state"
	KindInvalidInput    Kind = "invalid_input"
	KindValidation      Kind = "validation_error"
	KindDuplicateAnswer Kind = "duplicate_answer"
	KindUpstream        Kind = "upstream_failure"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

// KindOf classifies err against the domain taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrDuplicateAnswer):
		return KindDuplicateAnswer
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return KindConflict
	default:
		return KindInternal
	}
}
