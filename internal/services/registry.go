package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	bus "github.com/greenlight-dev/greenlight/internal/bus"
	constants "github.com/greenlight-dev/greenlight/internal/constants"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
	logger "github.com/greenlight-dev/greenlight/internal/logger"
	otel "github.com/greenlight-dev/greenlight/internal/otel"
	metric "go.opentelemetry.io/otel/metric"
)

// PendingCallRegistry tracks tool calls awaiting an approval or result.
// Settlement removes the entry in the same critical section that marks it
// terminal, so a call can be resolved, rejected, or removed at most once.
// Approval messages carry only a tool name, no call ID; when several calls
// for the same tool are in flight, the oldest registration is matched first.
type PendingCallRegistry struct {
	mutex    sync.RWMutex
	calls    map[string]*pendingCall
	order    []string
	eventBus *bus.Bus
	metrics  *otel.Metrics
	now      func() time.Time
}

type pendingCall struct {
	info    domain.CallInfo
	outcome chan domain.CallOutcome
}

var _ domain.CallRegistry = (*PendingCallRegistry)(nil)

// NewPendingCallRegistry creates a new registry. The bus and metrics are
// optional; a nil bus publishes nothing and nil metrics record nothing.
func NewPendingCallRegistry(eventBus *bus.Bus, metrics *otel.Metrics) *PendingCallRegistry {
	return &PendingCallRegistry{
		calls:    make(map[string]*pendingCall),
		eventBus: eventBus,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Register stores a new pending call for toolName and returns its ticket
func (r *PendingCallRegistry) Register(toolName string) domain.CallTicket {
	now := r.now()
	id := fmt.Sprintf("%s-%d-%s", toolName, now.UnixNano(), uuid.NewString()[:8])
	outcome := make(chan domain.CallOutcome, constants.OutcomeBuffer)

	call := &pendingCall{
		info: domain.CallInfo{
			ID:        id,
			ToolName:  toolName,
			CreatedAt: now,
			State:     domain.CallPending,
		},
		outcome: outcome,
	}

	r.mutex.Lock()
	r.calls[id] = call
	r.order = append(r.order, id)
	pending := len(r.calls)
	r.mutex.Unlock()

	if r.metrics != nil {
		ctx := context.Background()
		r.metrics.CallsRegistered.Add(ctx, 1, metric.WithAttributes(otel.AttrToolName.String(toolName)))
		r.metrics.CallsPending.Add(ctx, 1)
	}

	logger.Debug("Registered pending call", "call_id", id, "tool", toolName, "pending", pending)
	return domain.CallTicket{ID: id, Outcome: outcome}
}

// ResolveByToolName settles the oldest pending call registered for toolName
// and reports whether one was found
func (r *PendingCallRegistry) ResolveByToolName(toolName string, outcome domain.CallOutcome) bool {
	r.mutex.Lock()
	var match *pendingCall
	matchIdx := -1
	for i, id := range r.order {
		call := r.calls[id]
		if call != nil && call.info.ToolName == toolName {
			match = call
			matchIdx = i
			break
		}
	}
	if match == nil {
		r.mutex.Unlock()
		return false
	}

	match.info.State = domain.CallResolved
	delete(r.calls, match.info.ID)
	r.order = append(r.order[:matchIdx], r.order[matchIdx+1:]...)
	r.mutex.Unlock()

	// The entry is already gone, so this is the only send that can happen
	// and the buffered channel never blocks.
	match.outcome <- outcome

	if r.eventBus != nil {
		r.eventBus.Publish(domain.TopicCallResolved, domain.CallResolvedEvent{
			CallID:    match.info.ID,
			ToolName:  toolName,
			MessageID: outcome.MessageID,
			Approved:  outcome.Approved,
		})
	}

	if r.metrics != nil {
		ctx := context.Background()
		r.metrics.CallsResolved.Add(ctx, 1, metric.WithAttributes(
			otel.AttrToolName.String(toolName),
			otel.AttrApproved.Bool(outcome.Approved),
		))
		r.metrics.CallsPending.Add(ctx, -1)
		r.metrics.ResolveDuration.Record(ctx, r.now().Sub(match.info.CreatedAt).Seconds(),
			metric.WithAttributes(otel.AttrToolName.String(toolName)))
	}

	logger.Info("Resolved pending call",
		"call_id", match.info.ID,
		"tool", toolName,
		"approved", outcome.Approved,
		"message_id", outcome.MessageID)
	return true
}

// Remove drops a registration without settling it. The direct-response
// path calls this after winning the race, so a later push match for the
// same call finds nothing.
func (r *PendingCallRegistry) Remove(id string) {
	r.mutex.Lock()
	call, exists := r.calls[id]
	if !exists {
		r.mutex.Unlock()
		return
	}
	delete(r.calls, id)
	r.removeFromOrder(id)
	r.mutex.Unlock()

	if r.metrics != nil {
		r.metrics.CallsPending.Add(context.Background(), -1)
	}

	logger.Debug("Removed pending call without settling", "call_id", id, "tool", call.info.ToolName)
}

// HasPendingForTool reports whether any call for toolName is pending
func (r *PendingCallRegistry) HasPendingForTool(toolName string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, call := range r.calls {
		if call.info.ToolName == toolName {
			return true
		}
	}
	return false
}

// Count returns the number of pending calls
func (r *PendingCallRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.calls)
}

// Cleanup rejects every pending call older than maxAge with a
// CallTimeoutError, removes it, and returns the swept calls
func (r *PendingCallRegistry) Cleanup(maxAge time.Duration) []domain.CallInfo {
	now := r.now()
	cutoff := now.Add(-maxAge)

	r.mutex.Lock()
	var swept []*pendingCall
	remaining := r.order[:0]
	for _, id := range r.order {
		call := r.calls[id]
		if call == nil {
			continue
		}
		if call.info.CreatedAt.Before(cutoff) {
			call.info.State = domain.CallRejected
			delete(r.calls, id)
			swept = append(swept, call)
		} else {
			remaining = append(remaining, id)
		}
	}
	r.order = remaining
	r.mutex.Unlock()

	infos := make([]domain.CallInfo, 0, len(swept))
	for _, call := range swept {
		age := now.Sub(call.info.CreatedAt)
		call.outcome <- domain.CallOutcome{
			Err: &domain.CallTimeoutError{ToolName: call.info.ToolName, Age: age},
		}
		infos = append(infos, call.info)

		if r.metrics != nil {
			ctx := context.Background()
			r.metrics.CallsTimedOut.Add(ctx, 1, metric.WithAttributes(otel.AttrToolName.String(call.info.ToolName)))
			r.metrics.CallsPending.Add(ctx, -1)
		}

		logger.Warn("Rejected stale pending call",
			"call_id", call.info.ID,
			"tool", call.info.ToolName,
			"age", age.Round(time.Second).String())
	}

	return infos
}

// removeFromOrder splices id out of the registration order.
// Callers must hold the write lock.
func (r *PendingCallRegistry) removeFromOrder(id string) {
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
