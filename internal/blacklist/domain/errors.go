package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by strong lookups when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrValidation is the sentinel every ValidationError matches with errors.Is.
	ErrValidation = errors.New("validation failed")
)

// ValidationProblem distinguishes why a required input was rejected.
type ValidationProblem uint8

const (
	// ProblemMissing means the field was absent or blank.
	ProblemMissing ValidationProblem = iota + 1
	// ProblemUnresolved means the field was present but referenced nothing.
	ProblemUnresolved
	// ProblemInvalid means the field failed a format or range check.
	ProblemInvalid
)

func (p ValidationProblem) String() string {
	switch p {
	case ProblemMissing:
		return "missing"
	case ProblemUnresolved:
		return "unresolved"
	case ProblemInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("ValidationProblem(%d)", p)
	}
}

// ValidationError reports a rejected input field. Operations log it and abort
// without mutating anything.
type ValidationError struct {
	Field   string
	Problem ValidationProblem
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Problem, e.Field)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Missing(field string) error {
	return &ValidationError{Field: field, Problem: ProblemMissing}
}

func Unresolved(field string) error {
	return &ValidationError{Field: field, Problem: ProblemUnresolved}
}

func Invalid(field string) error {
	return &ValidationError{Field: field, Problem: ProblemInvalid}
}
