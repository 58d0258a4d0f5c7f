package resolver

import "errors"

var (
	// ErrAbsent marks expected absence: the element or pattern a step looks for is not in the body.
	ErrAbsent = errors.New("expected content absent")
	// ErrExhausted means no mirror or server candidate qualified.
	ErrExhausted = errors.New("no candidate qualified")
)

// StageError records which step of an extraction chain failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
