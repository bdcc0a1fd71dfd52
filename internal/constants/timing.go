package constants

import "time"

// CoordinatorTiming contains constants for pending-call lifecycle management
const (
	// PendingCallTimeout is how long a registered tool call may wait for an
	// approval or result before the sweep rejects it
	PendingCallTimeout = 15 * time.Minute

	// DefaultSweepSchedule is the cron expression for the stale-call sweep
	DefaultSweepSchedule = "* * * * *"

	// DispatchTimeout bounds a single direct-response request to the
	// execution service
	DispatchTimeout = 30 * time.Second

	// OutcomeBuffer is the buffer size of each pending call's outcome channel;
	// one slot is enough because a call settles at most once
	OutcomeBuffer = 1
)

// PushChannelTiming contains timing constants for the push connection
const (
	PushReconnectBaseDelay = 1 * time.Second
	PushReconnectMaxDelay  = 30 * time.Second
	PushHandshakeTimeout   = 10 * time.Second
	PushPingInterval       = 30 * time.Second
	PushReadLimit          = 1 << 20 // bytes per frame
)

// Test timing delays
const (
	TestSleepDelay = 100 * time.Millisecond // Standard delay in tests for timing-sensitive operations
)
