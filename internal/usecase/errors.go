package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrorUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrorConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	ErrorStoreUnavailable     ErrorCode = "STORE_UNAVAILABLE"
	ErrorMalformedRecord      ErrorCode = "MALFORMED_RECORD"
	ErrorAgentProcessing      ErrorCode = "AGENT_PROCESSING_FAULT"
	ErrorInternal             ErrorCode = "INTERNAL_ERROR"
)

// ErrAgentProcessing wraps every fault raised after the query was persisted:
// a missing credential, an agent failure or a failed outcome write.
var ErrAgentProcessing = errors.New("agent processing fault")

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code of a usecase error, or ErrorInternal for any other
// non-nil error.
func CodeOf(err error) ErrorCode {
	var ucErr *Error
	if errors.As(err, &ucErr) {
		return ucErr.Code
	}
	return ErrorInternal
}
