package domain

import "errors"

var (
	// ErrInvalidArgument marks caller mistakes (bad query parameters, malformed bodies).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when the requested paper, taxon or flag does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a paper already carries the opposite curation outcome.
	ErrConflict = errors.New("conflict")
)
