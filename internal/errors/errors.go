// Package errors provides structured error types for the BuildBox agent.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrEmptyGoal       = errors.New("goal is empty")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoPendingPlan   = errors.New("no pending plan")
	ErrTimeout         = errors.New("operation timed out")
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrUnavailable     = errors.New("service unavailable")
)

// ServiceError represents a failure in an external collaborator (completion
// service, repository service, push service). The upstream message is
// preserved for display in the conversation log.
type ServiceError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Service, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewServiceError creates a ServiceError.
func NewServiceError(service string, statusCode int, message string) *ServiceError {
	return &ServiceError{Service: service, StatusCode: statusCode, Message: message}
}

// WrapService wraps an underlying error as a ServiceError. Context timeouts
// are normalized so they test true against ErrTimeout.
func WrapService(service string, err error) *ServiceError {
	se := &ServiceError{Service: service, Message: err.Error(), Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		se.Err = fmt.Errorf("%w: %v", ErrTimeout, err)
		se.Message = "request timed out"
	}
	return se
}

// PlanFormatError means the completion service returned text that could not
// be decoded into a plan, even after code-fence stripping.
type PlanFormatError struct {
	Snippet string // truncated offending text, for logs
	Err     error
}

func (e *PlanFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid plan format: %v", e.Err)
	}
	return "invalid plan format"
}

func (e *PlanFormatError) Unwrap() error { return e.Err }

// NewPlanFormatError creates a PlanFormatError, keeping at most 200 bytes of
// the offending text.
func NewPlanFormatError(text string, cause error) *PlanFormatError {
	const max = 200
	if len(text) > max {
		text = text[:max]
	}
	return &PlanFormatError{Snippet: text, Err: cause}
}

// ExecutionError means plan execution hit an unexpected internal fault and
// was aborted. The original file store remains canonical.
type ExecutionError struct {
	ChangeIndex int // index of the change being applied, -1 if unknown
	Err         error
}

func (e *ExecutionError) Error() string {
	if e.ChangeIndex >= 0 {
		return fmt.Sprintf("plan execution failed at change %d: %v", e.ChangeIndex, e.Err)
	}
	return fmt.Sprintf("plan execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is likely transient and worth
// retrying. Only repository/push traffic is ever retried; plan format and
// execution errors are always terminal.
func IsRetryable(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
