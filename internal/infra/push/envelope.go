// Package push maintains the server-initiated event stream: a websocket
// connection that delivers approval decisions, results, shares, and
// presentation-context updates while the process runs.
package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

// Frame types the push channel delivers. Every frame is structurally
// tagged so the router can classify it without ambiguity.
const (
	FrameMessage = "message"
	FrameShare   = "share"
	FrameContext = "context"
	FramePing    = "ping"
)

// envelopeSchema rejects frames that are missing the tag or, for
// payload-bearing types, the idempotency key the rest of the system
// depends on.
const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"enum": ["message", "share", "context", "ping"]},
    "payload": {"type": "object"}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "message"}}, "required": ["type"]},
      "then": {
        "required": ["payload"],
        "properties": {"payload": {"required": ["id", "title"]}}
      }
    },
    {
      "if": {"properties": {"type": {"const": "share"}}, "required": ["type"]},
      "then": {
        "required": ["payload"],
        "properties": {"payload": {"required": ["id", "title"]}}
      }
    },
    {
      "if": {"properties": {"type": {"const": "context"}}, "required": ["type"]},
      "then": {"required": ["payload"]}
    }
  ]
}`

// Envelope is the outer frame of every push payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ContextFrame mirrors the presentation context the desktop shell reports:
// the session gate is fed from these frames.
type ContextFrame struct {
	Authenticated bool    `json:"authenticated"`
	Route         string  `json:"route"`
	ThreadID      *string `json:"thread_id,omitempty"`
	ThreadTitle   *string `json:"thread_title,omitempty"`
}

// EnvelopeValidator validates raw frames against the envelope schema
// before any payload is decoded.
type EnvelopeValidator struct {
	schema *jsonschema.Schema
}

// NewEnvelopeValidator compiles the envelope schema.
func NewEnvelopeValidator() (*EnvelopeValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("unmarshal envelope schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("envelope.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("envelope.json")
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return &EnvelopeValidator{schema: schema}, nil
}

// Validate checks a raw frame against the schema and returns the decoded
// envelope. The payload stays raw; callers decode it per frame type.
func (v *EnvelopeValidator) Validate(data []byte) (Envelope, error) {
	// jsonschema.UnmarshalJSON keeps numbers as json.Number, which the
	// validator requires.
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return Envelope{}, fmt.Errorf("invalid frame JSON: %w", err)
	}
	if err := v.schema.Validate(parsed); err != nil {
		return Envelope{}, fmt.Errorf("frame failed schema validation: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// DecodeMessage unmarshals a message payload. A missing received_at is
// stamped with the delivery time.
func (e Envelope) DecodeMessage() (domain.InboundMessage, error) {
	var msg domain.InboundMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return domain.InboundMessage{}, fmt.Errorf("decode message payload: %w", err)
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	return msg, nil
}

// DecodeShare unmarshals a share payload with the same stamping rule as
// DecodeMessage.
func (e Envelope) DecodeShare() (domain.ShareMessage, error) {
	var msg domain.ShareMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return domain.ShareMessage{}, fmt.Errorf("decode share payload: %w", err)
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	return msg, nil
}

// DecodeContext unmarshals a presentation-context payload.
func (e Envelope) DecodeContext() (ContextFrame, error) {
	var frame ContextFrame
	if err := json.Unmarshal(e.Payload, &frame); err != nil {
		return ContextFrame{}, fmt.Errorf("decode context payload: %w", err)
	}
	return frame, nil
}
