package domain

import (
	"fmt"
	"time"
)

// CallState tracks the lifecycle of a pending tool call. A call is created
// Pending and makes exactly one transition out of it.
type CallState int

const (
	CallPending CallState = iota
	CallResolved
	CallRejected
)

// String returns a human-readable state name
func (s CallState) String() string {
	switch s {
	case CallPending:
		return "pending"
	case CallResolved:
		return "resolved"
	case CallRejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the state admits no further transitions
func (s CallState) Terminal() bool {
	return s == CallResolved || s == CallRejected
}

// CallOutcome is the terminal result delivered to whoever registered a call.
// Err is non-nil only when the call was rejected.
type CallOutcome struct {
	Approved  bool
	Payload   string
	MessageID string
	Err       error
}

// CallTicket is handed back on registration. Outcome yields exactly one
// value over the ticket's lifetime; the channel is never closed without
// a value being sent first.
type CallTicket struct {
	ID      string
	Outcome <-chan CallOutcome
}

// CallInfo is a read-only snapshot of a registered call, used for
// introspection and status reporting.
type CallInfo struct {
	ID        string    `json:"id"`
	ToolName  string    `json:"tool_name"`
	CreatedAt time.Time `json:"created_at"`
	State     CallState `json:"-"`
}

// Age returns how long the call has been outstanding as of now
func (c CallInfo) Age(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}

// CallTimeoutError is the rejection a caller receives when the sweep
// abandons its registration.
type CallTimeoutError struct {
	ToolName string
	Age      time.Duration
}

// Error implements the error interface
func (e *CallTimeoutError) Error() string {
	return fmt.Sprintf("tool call %q timed out after %s waiting for an approval or result", e.ToolName, e.Age.Round(time.Second))
}
