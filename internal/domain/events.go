package domain

import "time"

// Bus topics. The presentation layer subscribes to the ui.* prefix;
// call.* and push.* exist for observers such as the status command and
// tests. Delivery is best-effort: a directive published with no listener
// is dropped, which is the intended behavior for inline approvals.
const (
	TopicNavigate       = "ui.navigate"
	TopicInlineApproval = "ui.approval.inline"
	TopicViewChanged    = "ui.view"
	TopicCallResolved   = "call.resolved"
	TopicCallTimeout    = "call.timeout"
	TopicPushState      = "push.state"
)

// NavigateDirective tells the presentation layer to switch to the full
// detail view for a stored message
type NavigateDirective struct {
	MessageID string
	Route     string
}

// InlineApprovalEvent carries an enriched message for the current view to
// render in place, without navigating
type InlineApprovalEvent struct {
	Message InboundMessage
}

// CallResolvedEvent is published after a push message settles a pending call
type CallResolvedEvent struct {
	CallID    string
	ToolName  string
	MessageID string
	Approved  bool
}

// CallTimeoutEvent is published for each registration the sweep abandons
type CallTimeoutEvent struct {
	CallID   string
	ToolName string
	Age      time.Duration
}

// PushStateEvent reports push-channel connectivity transitions
type PushStateEvent struct {
	Connected bool
	Err       string
	Attempt   int
}

// ViewChangedEvent mirrors presentation-context updates onto the bus so
// observers can follow what the session gate currently reports
type ViewChangedEvent struct {
	View ViewContext
}

// RouteAction is the router's decision for one inbound message
type RouteAction int

const (
	RouteActionNone RouteAction = iota
	RouteActionNavigate
	RouteActionInline
)

// String returns a human-readable action name
func (a RouteAction) String() string {
	switch a {
	case RouteActionNavigate:
		return "navigate"
	case RouteActionInline:
		return "inline"
	default:
		return "none"
	}
}
