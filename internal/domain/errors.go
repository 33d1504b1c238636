package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotConfigured  = errors.New("not configured")
	ErrPrecondition   = errors.New("precondition failed")
	ErrInvalidRequest = errors.New("invalid request")
	ErrJobBusy        = errors.New("job has a phase in progress")
	// ErrNotReady marks an artifact that has not been produced yet. It is a
	// not-found error for callers that only distinguish existence.
	ErrNotReady = fmt.Errorf("not ready yet: %w", ErrNotFound)
)

// Stage failure categories reported in job error messages as "{category}: {detail}".
const (
	CategoryAuth        = "AuthError"
	CategoryRateLimit   = "RateLimitError"
	CategoryAPI         = "APIError"
	CategoryParse       = "ParseError"
	CategoryNotFound    = "NotFoundError"
	CategoryAudio       = "AudioError"
	CategoryRender      = "RenderError"
	CategoryIO          = "IOError"
	CategoryNetwork     = "NetworkError"
	CategoryTimeout     = "TimeoutError"
	CategoryCanceled    = "CanceledError"
	CategoryPanic       = "PanicError"
	CategoryMissingData = "MissingDataError"
	CategoryScheduler   = "SchedulerError"
	CategoryGeneric     = "StageError"
)

// StageError is a categorized failure raised by an external stage.
type StageError struct {
	Category string
	Err      error
}

// NewStageError wraps err under the given category.
func NewStageError(category string, err error) *StageError {
	return &StageError{Category: category, Err: err}
}

// StageErrorf formats a new categorized stage error.
func StageErrorf(category, format string, args ...any) *StageError {
	return &StageError{Category: category, Err: fmt.Errorf(format, args...)}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Category
	}
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PreconditionError reports a trigger that arrived before its required state existed.
func PreconditionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// NotReadyError reports a job artifact that does not exist yet.
func NotReadyError(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotReady)
}

// ValidationError reports an invalid generation request field.
func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidRequest, field, reason)
}
