package llm

import (
	"errors"
	"fmt"
)

// FailureKind classifies model failures that are reported in-band on the record.
type FailureKind string

const (
	// FailureResourceLimit covers provider HTTP errors, rate limits and token limits.
	FailureResourceLimit FailureKind = "resource_limit"
	// FailureResponse covers output that cannot be decoded or fails validation.
	FailureResponse FailureKind = "response"
)

// ModelError is a classified failure of a single model invocation.
// Any other error returned by a VisionModel is unclassified.
type ModelError struct {
	Kind       FailureKind
	Model      string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ModelError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("status_code: %d, model_name: %s, body: %s", e.StatusCode, e.Model, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ModelError) Unwrap() error {
	return e.Cause
}

func NewResourceLimitError(model string, statusCode int, message string, cause error) *ModelError {
	return &ModelError{
		Kind:       FailureResourceLimit,
		Model:      model,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

func NewResponseError(model, message string, cause error) *ModelError {
	return &ModelError{
		Kind:    FailureResponse,
		Model:   model,
		Message: message,
		Cause:   cause,
	}
}

// AsModelError returns the classified failure in err's chain, if any.
func AsModelError(err error) (*ModelError, bool) {
	var modelErr *ModelError
	if errors.As(err, &modelErr) {
		return modelErr, true
	}
	return nil, false
}
