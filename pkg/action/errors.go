package action

import (
	"errors"
	"fmt"
)

// Code classifies a workflow failure.
type Code string

const (
	CodeUnsupportedAction     Code = "UnsupportedAction"     // CodeUnsupportedAction reports an unrecognized action kind.
	CodeElementNotFound       Code = "ElementNotFound"       // CodeElementNotFound reports a required element that never became visible.
	CodeAuthenticationBlocked Code = "AuthenticationBlocked" // CodeAuthenticationBlocked reports a detected CAPTCHA or OTP challenge.
	CodeManualStepRequired    Code = "ManualStepRequired"    // CodeManualStepRequired reports a step that needs a human.
	CodeArtifactUnresolved    Code = "ArtifactUnresolved"    // CodeArtifactUnresolved reports that no download URL was discoverable.
	CodeNetworkFailure        Code = "NetworkFailure"        // CodeNetworkFailure reports a non-success status on a document refetch.
	CodeActionFailed          Code = "ActionFailed"          // CodeActionFailed wraps unexpected internal failures.
)

// Error is a typed workflow failure carried across the action boundary.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a typed failure.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError coerces any error into a typed failure, wrapping unknown errors
// under CodeActionFailed so callers always receive a structured response.
func AsError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{Code: CodeActionFailed, Message: err.Error()}
}
