package dependency

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrRegistryFrozen is returned when a binding is added after Freeze.
	ErrRegistryFrozen = errors.New("dependency: registry is frozen")

	// ErrFactoryPanic is returned when a factory panics while building a dependency.
	ErrFactoryPanic = errors.New("dependency: panic in factory")

	// ErrNilFactory is returned when a binding is registered without a factory.
	ErrNilFactory = errors.New("dependency: nil factory")

	// ErrInvalidTarget is returned by Populate when the target is not a pointer to a struct.
	ErrInvalidTarget = errors.New("dependency: target must be a non-nil pointer to a struct")
)

// DuplicateError is returned when a requirement is bound twice.
type DuplicateError struct{ Requirement Requirement }

// Error implements the error interface.
func (e DuplicateError) Error() string {
	return "dependency: duplicate binding for " + strconv.Quote(string(e.Requirement))
}

// MissingError is returned when nothing is bound for a requirement.
type MissingError struct{ Requirement Requirement }

// Error implements the error interface.
func (e MissingError) Error() string {
	return "dependency: " + strconv.Quote(string(e.Requirement)) + " is not bound"
}

// WrongTypeError is returned when a bound value cannot be assigned to the requested type.
type WrongTypeError struct {
	Requirement Requirement
	Want        string
	Got         string
}

// Error implements the error interface.
func (e WrongTypeError) Error() string {
	return "dependency: " + strconv.Quote(string(e.Requirement)) +
		" has type " + e.Got + ", want " + e.Want
}

// CycleError is returned when factories depend on each other in a loop.
type CycleError struct{ Path []Requirement }

// Error implements the error interface.
func (e CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = string(p)
	}

	return "dependency: cycle " + strings.Join(parts, " -> ")
}

// ResolutionError aggregates every requirement that failed during one resolution pass.
type ResolutionError struct {
	Failures []error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}

	return "dependency: " + strconv.Itoa(len(e.Failures)) + " requirements failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *ResolutionError) Unwrap() []error { return e.Failures }

// Missing lists the requirements that had no binding.
func (e *ResolutionError) Missing() []Requirement {
	var out []Requirement
	for _, f := range e.Failures {
		var m MissingError
		if errors.As(f, &m) {
			out = append(out, m.Requirement)
		}
	}

	return out
}
