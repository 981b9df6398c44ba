package ai

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDisabled means generation is switched off or has no credentials.
	ErrDisabled = errors.New("generation disabled")
	// ErrCircuitOpen means the breaker rejected the call without a network attempt.
	ErrCircuitOpen = errors.New("generation circuit open")
	// ErrInvalidOutput means the model output failed the report contract after one correction.
	ErrInvalidOutput = errors.New("generation returned invalid output")
	// ErrBudgetExceeded means the total request budget ran out before a usable answer.
	ErrBudgetExceeded = errors.New("generation budget exceeded")
	// ErrCanceled means the caller went away; it says nothing about downstream health.
	ErrCanceled = errors.New("generation canceled by caller")
)

// StatusError is a non-2xx answer from the completion endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion status %d", e.Code)
	}
	return fmt.Sprintf("completion status %d: %s", e.Code, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// DownstreamError is a transport failure that survived every retry.
type DownstreamError struct {
	Attempts int
	Err      error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *DownstreamError) Unwrap() error { return e.Err }

// Message is one chat turn sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)
