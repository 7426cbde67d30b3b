package wizard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("wizard: validation failed")
	ErrPersistence       = errors.New("wizard: persistence failed")
	ErrStepLocked        = errors.New("wizard: step is locked")
	ErrNotOnLastStep     = errors.New("wizard: submit is only allowed on the last step")
	ErrSubmitInProgress  = errors.New("wizard: submit in progress")
	ErrAlreadySubmitted  = errors.New("wizard: already submitted")
	ErrClosed            = errors.New("wizard: closed")
	ErrStaleLookup       = errors.New("wizard: stale lookup result")
	ErrLookupUnavailable = errors.New("wizard: profile lookup not configured")
)

// ValidationError blocks Next or Submit until the listed fields are fixed.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Result.Errors))
	for _, fe := range e.Result.Errors {
		parts = append(parts, fmt.Sprintf("%s %s", fe.Field, fe.Reason))
	}
	return fmt.Sprintf("wizard: step %d invalid: %s", e.Result.Step, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError wraps a failed save. The wizard keeps its state, so the
// caller may retry Submit.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("wizard: save booking: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Retryable() bool {
	return true
}
