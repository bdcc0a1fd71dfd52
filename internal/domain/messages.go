package domain

import (
	"time"
)

// Approval-bearing titles. A message carrying one of these represents a
// decision a human made (or must make) about a pending tool call and
// participates in the navigation policy; everything else is persisted
// and otherwise ignored.
const (
	TitleSecurityEvaluation   = "Security Evaluation Request"
	TitleCodeResponseApproval = "code response approval"
)

// DefaultApprovalTitles returns the built-in approval-bearing title set.
// The router consults the configured set, which defaults to this one.
func DefaultApprovalTitles() []string {
	return []string{TitleSecurityEvaluation, TitleCodeResponseApproval}
}

// ExplanationTemplate is the phrasing this process embeds in every tool
// call it dispatches. The fingerprint markers below are substrings of it,
// so an approval prompt echoing our own explanation is recognizable when
// it comes back over the push channel.
const ExplanationTemplate = "Greenlight requested permission to run %s. Approve to continue."

// DefaultOriginMarkers returns the marker substrings a same-origin
// explanation must contain.
func DefaultOriginMarkers() []string {
	return []string{
		"Greenlight requested permission to run",
		"Approve to continue",
	}
}

// InboundMessage is a push-channel payload that may require approval
// handling. ThreadID and ThreadTitle are attached by the router when the
// user is looking at a conversation; FromOurApp is a routing hint derived
// per delivery and never persisted as authoritative state.
type InboundMessage struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Explanation *string   `json:"explanation,omitempty"`
	ToolName    *string   `json:"tool_name,omitempty"`
	Approved    *bool     `json:"approved,omitempty"`
	Result      *string   `json:"result,omitempty"`
	ThreadID    *string   `json:"thread_id,omitempty"`
	ThreadTitle *string   `json:"thread_title,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
	FromOurApp  bool      `json:"-"`
}

// ShareMessage is a structurally distinct push payload for collection
// shares. Shares bypass approval routing entirely and are persisted
// idempotently by ID.
type ShareMessage struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	SenderName   *string   `json:"sender_name,omitempty"`
	CollectionID *string   `json:"collection_id,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Stored message kinds
const (
	MessageKindInbound = "message"
	MessageKindShare   = "share"
)

// StoredMessage is the unified durable record for both payload kinds
type StoredMessage struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	ToolName    *string   `json:"tool_name,omitempty"`
	ThreadID    *string   `json:"thread_id,omitempty"`
	ThreadTitle *string   `json:"thread_title,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

// StoredFromInbound converts an enriched inbound message to its durable form
func StoredFromInbound(msg InboundMessage) StoredMessage {
	body := ""
	if msg.Explanation != nil {
		body = *msg.Explanation
	}
	return StoredMessage{
		ID:          msg.ID,
		Kind:        MessageKindInbound,
		Title:       msg.Title,
		Body:        body,
		ToolName:    msg.ToolName,
		ThreadID:    msg.ThreadID,
		ThreadTitle: msg.ThreadTitle,
		ReceivedAt:  msg.ReceivedAt,
	}
}

// StoredFromShare converts a share message to its durable form
func StoredFromShare(msg ShareMessage) StoredMessage {
	return StoredMessage{
		ID:         msg.ID,
		Kind:       MessageKindShare,
		Title:      msg.Title,
		Body:       msg.Content,
		ReceivedAt: msg.ReceivedAt,
	}
}
