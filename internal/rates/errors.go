package rates

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies failures surfaced to callers.
type Code string

const (
	// CodeInvalidInput marks a request the caller can fix.
	CodeInvalidInput Code = "InvalidInput"
	// CodeUpstreamFailure marks a failed collaborator call; not retried here.
	CodeUpstreamFailure Code = "UpstreamFailure"
)

// Error is a classified failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func invalidInput(format string, args ...any) error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func upstream(err error, format string, args ...any) error {
	return &Error{Code: CodeUpstreamFailure, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsInvalidInput reports whether err carries CodeInvalidInput.
func IsInvalidInput(err error) bool {
	return hasCode(err, CodeInvalidInput)
}

// IsUpstreamFailure reports whether err carries CodeUpstreamFailure.
func IsUpstreamFailure(err error) bool {
	return hasCode(err, CodeUpstreamFailure)
}

func hasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
