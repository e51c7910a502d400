package review

import "errors"

var (
	// ErrSubmitInFlight is returned when Submit is called while a prior
	// submit has not resolved. Callers are expected to disable action
	// buttons while Submitting; the engine refuses the overlap anyway.
	ErrSubmitInFlight = errors.New("a submit is already in flight")

	// ErrSessionClosed is returned when operating on a closed session
	ErrSessionClosed = errors.New("session is closed")

	// ErrEmptySelection is returned when a batch operation receives no
	// resource ids
	ErrEmptySelection = errors.New("empty selection")
)
