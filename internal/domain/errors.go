package domain

import "errors"

var (
	// ErrNotFound is the generic "resource not found" reported by collaborators.
	ErrNotFound = errors.New("not found")
	// ErrProblemSetNotFound is returned when a problem set id does not exist.
	ErrProblemSetNotFound = errors.New("problem set not found")
	// ErrProblemNotFound is returned when a problem id does not exist.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrNoSelectedProblemSet indicates a problem-level action arrived with no problem set open.
	ErrNoSelectedProblemSet = errors.New("no problem set selected")
	// ErrInvalidDraft indicates a create/edit request failed validation.
	ErrInvalidDraft = errors.New("invalid draft")
)
