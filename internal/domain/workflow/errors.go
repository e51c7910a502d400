package workflow

import "errors"

var (
	// ErrDefinitionUnavailable is returned when the workflow definition
	// could not be fetched and the caller received a degraded fallback
	ErrDefinitionUnavailable = errors.New("workflow definition unavailable")

	// ErrTransitionRejected is returned when the backend refuses an
	// action, or when its response carries no recognizable node
	ErrTransitionRejected = errors.New("transition rejected")

	// ErrUnknownAction is returned when an action id is not declared by
	// the definition in effect
	ErrUnknownAction = errors.New("unknown action")
)
