package payload

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned when the body is not a JSON object.
	ErrMalformedInput = errors.New("payload is not a JSON object")
	// ErrClassificationAmbiguous is returned when neither canonical shape can be recognised.
	ErrClassificationAmbiguous = errors.New("payload matches neither feature report nor assessment bundle markers")
)

// SchemaValidationError reports the offending field path of a payload that parsed but
// violates the canonical schema.
type SchemaValidationError struct {
	Path   string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Path, e.Reason)
}

// Warning is a non-fatal normalization finding, logged by the caller.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}
