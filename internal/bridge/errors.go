package bridge

import (
	"context"
	"errors"
	"fmt"
)

// Error codes. Setup codes end the process; session codes end one session.
const (
	ErrCodeIdentityFile = "IDENTITY_FILE"
	ErrCodeDisplayOpen  = "DISPLAY_OPEN"
	ErrCodeFirstCapture = "FIRST_CAPTURE"
	ErrCodeNoBackend    = "NO_BACKEND"
	ErrCodeBusInit      = "BUS_INIT"
	ErrCodeIdentityRead = "IDENTITY_READ"
	ErrCodeSession      = "SESSION"
)

// Error is a bridge error with a code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new bridge error.
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitNoBackend = 2
	ExitBusInit   = 3
)

// ExitCode maps an error returned by setup or Run to the process exit code.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return ExitOK
	}
	var be *Error
	if errors.As(err, &be) {
		switch be.Code {
		case ErrCodeNoBackend:
			return ExitNoBackend
		case ErrCodeBusInit:
			return ExitBusInit
		}
	}
	return ExitFailure
}
