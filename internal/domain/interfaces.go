package domain

import (
	"context"
	"time"
)

// CallRegistry tracks tool invocations awaiting an approval or result.
// Registration is total; settlement happens at most once per call, by
// whichever of the direct response, a matching push message, or the
// stale sweep gets there first.
type CallRegistry interface {
	// Register stores a new pending call for toolName and returns its
	// ticket. The ticket's Outcome channel receives exactly one value,
	// or none if the call is removed unsettled.
	Register(toolName string) CallTicket

	// ResolveByToolName settles the oldest pending call registered for
	// toolName and reports whether one was found. Absence of a match is
	// a normal outcome.
	ResolveByToolName(toolName string, outcome CallOutcome) bool

	// Remove drops a registration without settling it. Removing an
	// already settled or unknown ID is a no-op.
	Remove(id string)

	// HasPendingForTool reports whether any call for toolName is pending.
	HasPendingForTool(toolName string) bool

	// Count returns the number of pending calls.
	Count() int

	// Cleanup rejects every pending call older than maxAge with a
	// CallTimeoutError and returns the swept calls.
	Cleanup(maxAge time.Duration) []CallInfo
}

// MessageStore persists push-channel traffic. Appends are idempotent by
// message ID: storing the same ID twice must leave a single record. The
// router only ever writes; reads exist for the detail view and the
// messages command.
type MessageStore interface {
	// AddMessage appends an enriched inbound message. Storing an ID that
	// already exists is a no-op, not an error.
	AddMessage(ctx context.Context, msg InboundMessage) error

	// AddShareMessage appends a share payload with the same idempotency
	// contract as AddMessage.
	AddShareMessage(ctx context.Context, msg ShareMessage) error

	// GetMessage returns the stored record for id, or ErrMessageNotFound.
	GetMessage(ctx context.Context, id string) (*StoredMessage, error)

	// ListMessages returns up to limit records, newest first.
	ListMessages(ctx context.Context, limit int) ([]StoredMessage, error)

	// CountMessages returns the number of stored records.
	CountMessages(ctx context.Context) (int, error)

	// Health verifies the backend is reachable.
	Health(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// ViewContextProvider supplies the presentation context the router reads
// for every inbound message. Implementations must be safe for concurrent
// use; the push channel and the presentation layer touch it from
// different goroutines.
type ViewContextProvider interface {
	CurrentView() ViewContext
	Authenticated() bool
}
