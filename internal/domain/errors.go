package domain

import (
	"errors"
	"fmt"
)

// ErrMessageNotFound is returned by MessageStore.GetMessage when no record
// exists for the requested ID.
var ErrMessageNotFound = errors.New("message not found")

// ErrInvocationDenied is returned by the dispatcher when a human declined
// the tool call, in the direct response or over the push channel.
var ErrInvocationDenied = errors.New("tool invocation denied")

// DispatchError reports a direct-response request that failed before the
// execution service produced an answer. The pending registration is
// removed when this is returned, so the push channel cannot settle a call
// the caller already gave up on.
type DispatchError struct {
	ToolName   string
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dispatch of %q failed: %v", e.ToolName, e.Cause)
	}
	return fmt.Sprintf("dispatch of %q failed with status %d", e.ToolName, e.StatusCode)
}

// Unwrap exposes the underlying transport error
func (e *DispatchError) Unwrap() error {
	return e.Cause
}
