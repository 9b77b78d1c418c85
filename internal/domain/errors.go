package domain

import "errors"

// Error kinds recovered locally with documented fallbacks. They are exposed
// so callers can distinguish "fell back because of X" from "succeeded", but
// nothing in the engine propagates them for merely degenerate numeric input.
var (
	// ErrInsufficientData marks fewer observations than a computation needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMissingInstrument marks an instrument absent from a supplied
	// series or metadata map; it is skipped from aggregation, never fatal.
	ErrMissingInstrument = errors.New("instrument data missing")

	// ErrInvalidConstraints marks a caller configuration error, e.g. weight
	// bounds with min greater than max. This is the one kind rejected
	// outright.
	ErrInvalidConstraints = errors.New("invalid constraints")
)
