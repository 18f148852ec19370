// internal/agent/errors.go
package agent

import (
	"errors"

	"github.com/xkilldash9x/openapi-seeker/internal/capability"
	"github.com/xkilldash9x/openapi-seeker/internal/credentials"
	"github.com/xkilldash9x/openapi-seeker/internal/frontier"
	"github.com/xkilldash9x/openapi-seeker/internal/llmclient"
)

// ErrUnknownAction is returned when an action kind has no dispatch target.
var ErrUnknownAction = errors.New("unknown action")

// ErrorCode is the category shown to the model when a turn fails.
type ErrorCode string

const (
	ErrCodeModelUnavailable    ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeSchemaViolation     ErrorCode = "SCHEMA_VIOLATION"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeInvalidArguments    ErrorCode = "INVALID_ARGUMENTS"
	ErrCodeCapabilityError     ErrorCode = "CAPABILITY_ERROR"
	ErrCodeNavigationTimeout   ErrorCode = "NAVIGATION_TIMEOUT"
	ErrCodeUnknownAction       ErrorCode = "UNKNOWN_ACTION"
	ErrCodeCredentialsNotFound ErrorCode = "CREDENTIALS_NOT_FOUND"

	// ErrCodeTurnPanic marks a turn that panicked and was recovered.
	ErrCodeTurnPanic ErrorCode = "TURN_PANIC"
)

// errTurnPanic is the cause recorded for a recovered panic.
var errTurnPanic = errors.New("turn panicked")

// Classify maps err onto an ErrorCode. The most specific cause wins: a
// navigation timeout raised inside a tool is NAVIGATION_TIMEOUT, not
// CAPABILITY_ERROR.
func Classify(err error) ErrorCode {
	switch {
	case errors.Is(err, errTurnPanic):
		return ErrCodeTurnPanic
	case errors.Is(err, credentials.ErrNotFound):
		return ErrCodeCredentialsNotFound
	case errors.Is(err, frontier.ErrNavigationTimeout):
		return ErrCodeNavigationTimeout
	case errors.Is(err, llmclient.ErrModelUnavailable):
		return ErrCodeModelUnavailable
	case errors.Is(err, ErrSchemaViolation):
		return ErrCodeSchemaViolation
	case errors.Is(err, ErrUnknownAction):
		return ErrCodeUnknownAction
	case errors.Is(err, capability.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, capability.ErrInvalidArguments):
		return ErrCodeInvalidArguments
	default:
		return ErrCodeCapabilityError
	}
}
