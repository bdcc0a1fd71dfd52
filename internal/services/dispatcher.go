package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
	logger "github.com/greenlight-dev/greenlight/internal/logger"
	otel "github.com/greenlight-dev/greenlight/internal/otel"
	metric "go.opentelemetry.io/otel/metric"
	trace "go.opentelemetry.io/otel/trace"
	zap "go.uber.org/zap"
)

const invokePath = "/v1/tools/invoke"

// Direct-response status values the execution service reports.
const (
	invokeStatusCompleted = "completed"
	invokeStatusPending   = "approval_pending"
)

type invokeRequest struct {
	ToolName    string         `json:"tool_name"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Explanation string         `json:"explanation"`
}

type invokeResponse struct {
	Status   string `json:"status"`
	Approved *bool  `json:"approved,omitempty"`
	Output   string `json:"output,omitempty"`
}

// ToolDispatcher issues tool calls to the execution service over the
// direct-response path while keeping the push-channel fallback armed. Every
// dispatch registers with the call registry first; whichever of the direct
// response, a matching push approval, or the stale sweep answers first is
// the one the caller sees. The embedded explanation is the fingerprint the
// matcher later recognizes when the approval echoes back over push.
type ToolDispatcher struct {
	registry domain.CallRegistry
	client   *RetryableHTTPClient
	metrics  *otel.Metrics
	baseURL  string
	apiKey   string
}

// NewToolDispatcher creates a dispatcher against the given execution
// service base URL.
func NewToolDispatcher(registry domain.CallRegistry, client *RetryableHTTPClient, metrics *otel.Metrics, baseURL, apiKey string) *ToolDispatcher {
	return &ToolDispatcher{
		registry: registry,
		client:   client,
		metrics:  metrics,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
	}
}

// Dispatch invokes toolName with args and blocks until an answer arrives
// on either path, the context is cancelled, or the sweep abandons the
// call. It returns the tool output on approval; a human denial surfaces
// as ErrInvocationDenied and an abandoned call as a CallTimeoutError.
func (d *ToolDispatcher) Dispatch(ctx context.Context, toolName string, args map[string]any) (string, error) {
	start := time.Now()
	ticket := d.registry.Register(toolName)
	ctx, span := otel.StartClientSpan(ctx, otel.Tracer(), "tool.dispatch",
		otel.AttrToolName.String(toolName),
		otel.AttrCallID.String(ticket.ID),
	)
	defer span.End()
	ctx = logger.With(ctx, zap.String("tool", toolName), zap.String("call_id", ticket.ID))
	logger.L(ctx).Debug("Dispatching tool call")

	resp, err := d.post(ctx, toolName, args)
	if err != nil {
		d.registry.Remove(ticket.ID)
		return "", err
	}

	switch resp.Status {
	case invokeStatusCompleted:
		// The direct response won; disarm the fallback so a later push
		// match finds nothing.
		d.registry.Remove(ticket.ID)
		d.recordDispatch(ctx, toolName, start, "direct")
		if resp.Approved != nil && !*resp.Approved {
			return "", domain.ErrInvocationDenied
		}
		return resp.Output, nil

	case invokeStatusPending:
		logger.L(ctx).Info("Awaiting approval over the push channel")
		select {
		case outcome := <-ticket.Outcome:
			d.recordDispatch(ctx, toolName, start, "push")
			if outcome.Err != nil {
				return "", outcome.Err
			}
			if !outcome.Approved {
				return "", domain.ErrInvocationDenied
			}
			return outcome.Payload, nil
		case <-ctx.Done():
			d.registry.Remove(ticket.ID)
			return "", ctx.Err()
		}

	default:
		d.registry.Remove(ticket.ID)
		logger.L(ctx).Warn("Unexpected invocation status", zap.String("status", resp.Status))
		return "", &domain.DispatchError{
			ToolName: toolName,
			Cause:    fmt.Errorf("unexpected invocation status %q", resp.Status),
		}
	}
}

func (d *ToolDispatcher) post(ctx context.Context, toolName string, args map[string]any) (invokeResponse, error) {
	payload := invokeRequest{
		ToolName:    toolName,
		Arguments:   args,
		Explanation: fmt.Sprintf(domain.ExplanationTemplate, toolName),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return invokeResponse{}, &domain.DispatchError{ToolName: toolName, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+invokePath, bytes.NewReader(body))
	if err != nil {
		return invokeResponse{}, &domain.DispatchError{ToolName: toolName, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	httpResp, err := d.client.Do(req)
	if err != nil {
		return invokeResponse{}, &domain.DispatchError{ToolName: toolName, Cause: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	switch httpResp.StatusCode {
	case http.StatusOK:
		var resp invokeResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return invokeResponse{}, &domain.DispatchError{ToolName: toolName, Cause: fmt.Errorf("decode response: %w", err)}
		}
		return resp, nil
	case http.StatusAccepted:
		// Some gateway versions signal the pending state by status code
		// alone, with an empty body.
		_, _ = io.Copy(io.Discard, httpResp.Body)
		return invokeResponse{Status: invokeStatusPending}, nil
	default:
		_, _ = io.Copy(io.Discard, httpResp.Body)
		return invokeResponse{}, &domain.DispatchError{ToolName: toolName, StatusCode: httpResp.StatusCode}
	}
}

func (d *ToolDispatcher) recordDispatch(ctx context.Context, toolName string, start time.Time, settledBy string) {
	trace.SpanFromContext(ctx).SetAttributes(otel.AttrSettledBy.String(settledBy))
	if d.metrics == nil {
		return
	}
	d.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		otel.AttrToolName.String(toolName),
		otel.AttrSettledBy.String(settledBy),
	))
}
