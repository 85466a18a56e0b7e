package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSelection marks user input that breaks a selection rule.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrPlanTooLarge marks a selection whose cross product exceeds the unit ceiling.
	ErrPlanTooLarge = errors.New("plan too large")

	// ErrIncompleteResult is returned in all-or-nothing mode when any unit failed.
	ErrIncompleteResult = errors.New("incomplete result")
)

// Remote failure classes. Adapters wrap their errors with one of these so the
// pipeline can decide whether a unit is worth retrying.
var (
	ErrTimeout       = errors.New("remote timeout")
	ErrQuotaExceeded = errors.New("remote quota exceeded")
	ErrUnavailable   = errors.New("remote unavailable")
	ErrBadRequest    = errors.New("remote rejected request")
)

// IsTransient reports whether err is worth retrying for the same unit.
// Cancellation of the caller's context is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// SelectionError lists every problem found while normalizing a selection.
type SelectionError struct {
	Problems []string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidSelection, strings.Join(e.Problems, "; "))
}

// Is lets errors.Is(err, ErrInvalidSelection) match.
func (e *SelectionError) Is(target error) bool { return target == ErrInvalidSelection }

func (e *SelectionError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// ExtractionFailure records a unit whose remote call did not succeed.
type ExtractionFailure struct {
	Unit      QueryUnit
	Attempts  int
	Transient bool
	Err       error
}

func (f *ExtractionFailure) Error() string {
	return fmt.Sprintf("extract %s after %d attempt(s): %v", f.Unit, f.Attempts, f.Err)
}

func (f *ExtractionFailure) Unwrap() error { return f.Err }
