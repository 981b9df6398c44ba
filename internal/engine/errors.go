package engine

import (
	"errors"
	"fmt"

	"github.com/nathanbogale/CrediSynth/internal/ai"
	"github.com/nathanbogale/CrediSynth/internal/payload"
)

// Kind is the failure class surfaced to callers.
type Kind string

const (
	KindMalformedInput        Kind = "MALFORMED_INPUT"
	KindValidationFailed      Kind = "VALIDATION_FAILED"
	KindDownstreamUnavailable Kind = "DOWNSTREAM_UNAVAILABLE"
	KindInternal              Kind = "INTERNAL_ERROR"
)

// Error is the only error type Analyze returns.
type Error struct {
	Kind          Kind
	Path          string
	Err           error
	AnalysisID    string
	CorrelationID string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the caller-facing text. Internal failures never expose their cause.
func (e *Error) Message() string {
	switch e.Kind {
	case KindInternal:
		return "internal error"
	case KindDownstreamUnavailable:
		return "report generation is unavailable"
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// classifyError maps a pipeline error onto its Kind.
func classifyError(err error) *Error {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}

	var schemaErr *payload.SchemaValidationError
	var downstreamErr *ai.DownstreamError
	var statusErr *ai.StatusError
	switch {
	case errors.As(err, &schemaErr):
		return &Error{Kind: KindValidationFailed, Path: schemaErr.Path, Err: err}
	case errors.Is(err, payload.ErrClassificationAmbiguous):
		return &Error{Kind: KindValidationFailed, Err: err}
	case errors.Is(err, payload.ErrMalformedInput):
		return &Error{Kind: KindMalformedInput, Err: err}
	case errors.Is(err, ai.ErrCircuitOpen),
		errors.Is(err, ai.ErrInvalidOutput),
		errors.Is(err, ai.ErrBudgetExceeded),
		errors.Is(err, ai.ErrCanceled),
		errors.Is(err, ai.ErrDisabled),
		errors.As(err, &downstreamErr),
		errors.As(err, &statusErr):
		return &Error{Kind: KindDownstreamUnavailable, Err: err}
	}
	return &Error{Kind: KindInternal, Err: err}
}
