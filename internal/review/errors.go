package review

import "errors"

// Unknown ids are not errors: lookups and mutations on a missing record
// return nil or false with a nil error. The sentinels below cover the cases
// callers are expected to branch on.
var (
	// ErrValidation wraps every boundary validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidParent is returned when a reply targets a missing comment,
	// a comment of another subject, or another reply.
	ErrInvalidParent = errors.New("invalid parent comment")

	// ErrFeedbackExists is returned when a markup already owns a feedback.
	ErrFeedbackExists = errors.New("markup already has feedback")

	// ErrInvalidTransition is returned in strict mode for a feedback status
	// change outside pending -> in_progress -> {resolved, rejected}.
	ErrInvalidTransition = errors.New("invalid feedback status transition")

	// ErrNotDesigner is returned when a non-designer asks for resolve rights.
	ErrNotDesigner = errors.New("principal is not a designer")
)
