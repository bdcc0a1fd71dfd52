package services

import (
	"context"

	bus "github.com/greenlight-dev/greenlight/internal/bus"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
	logger "github.com/greenlight-dev/greenlight/internal/logger"
	otel "github.com/greenlight-dev/greenlight/internal/otel"
	metric "go.opentelemetry.io/otel/metric"
	trace "go.opentelemetry.io/otel/trace"
)

// InboundRouter decides what happens to each payload the push channel
// delivers: enrich, persist, settle a matching pending call, then either
// navigate to the detail view or render the approval inline. Approval
// prompts are disruptive, so inline rendering wins whenever the user is
// already somewhere that can show one; full navigation is reserved for
// contexts that cannot, and for cross-origin prompts where rendering
// inline would be misleading.
type InboundRouter struct {
	store          domain.MessageStore
	registry       domain.CallRegistry
	matcher        *FingerprintMatcher
	views          domain.ViewContextProvider
	eventBus       *bus.Bus
	metrics        *otel.Metrics
	approvalTitles map[string]struct{}
}

// NewInboundRouter creates a router. approvalTitles is the configured
// approval-bearing title set; empty falls back to the built-in titles.
func NewInboundRouter(
	store domain.MessageStore,
	registry domain.CallRegistry,
	matcher *FingerprintMatcher,
	views domain.ViewContextProvider,
	eventBus *bus.Bus,
	metrics *otel.Metrics,
	approvalTitles []string,
) *InboundRouter {
	if len(approvalTitles) == 0 {
		approvalTitles = domain.DefaultApprovalTitles()
	}
	titles := make(map[string]struct{}, len(approvalTitles))
	for _, title := range approvalTitles {
		titles[title] = struct{}{}
	}
	return &InboundRouter{
		store:          store,
		registry:       registry,
		matcher:        matcher,
		views:          views,
		eventBus:       eventBus,
		metrics:        metrics,
		approvalTitles: titles,
	}
}

// HandleMessage runs one inbound message through the full pipeline and
// returns the routing decision that was taken. Unauthenticated sessions
// drop the message before any other work happens, including persistence.
func (r *InboundRouter) HandleMessage(ctx context.Context, msg domain.InboundMessage) domain.RouteAction {
	if !r.views.Authenticated() {
		logger.Debug("Dropped inbound message from unauthenticated session", "message_id", msg.ID)
		return domain.RouteActionNone
	}

	ctx, span := otel.StartSpan(ctx, otel.Tracer(), "route.message",
		otel.AttrMessageID.String(msg.ID),
	)
	defer span.End()

	if r.metrics != nil {
		r.metrics.MessagesReceived.Add(ctx, 1,
			metric.WithAttributes(otel.AttrMessageKind.String(domain.MessageKindInbound)))
	}

	// The view context is re-read for every message, never cached: the
	// user may have navigated between two deliveries.
	view := r.views.CurrentView()
	if domain.ConversationCapable(view.Route) && view.HasThread() {
		msg.ThreadID = view.ThreadID
		msg.ThreadTitle = view.ThreadTitle
	}

	if msg.Title == domain.TitleSecurityEvaluation {
		msg.FromOurApp = r.matcher.IsFromOurApp(msg.Explanation)
	}

	persistErr := r.store.AddMessage(ctx, msg)
	if persistErr != nil {
		logger.Error("Failed to persist inbound message",
			"message_id", msg.ID,
			"title", msg.Title,
			"error", persistErr)
		if r.metrics != nil {
			r.metrics.PersistErrors.Add(ctx, 1)
		}
	} else if r.metrics != nil {
		r.metrics.MessagesPersisted.Add(ctx, 1,
			metric.WithAttributes(otel.AttrMessageKind.String(domain.MessageKindInbound)))
	}

	r.resolvePendingCall(msg)

	approval := r.isApprovalBearing(msg.Title)
	if persistErr != nil {
		// Best-effort recovery: the user should not be stranded with an
		// unacknowledged approval just because the store misbehaved.
		if approval && view.Route != domain.RouteHome {
			return r.navigate(ctx, msg.ID)
		}
		return domain.RouteActionNone
	}

	if !approval {
		logger.Debug("Persisted message without routing", "message_id", msg.ID, "title", msg.Title)
		return domain.RouteActionNone
	}

	crossOrigin := msg.Title == domain.TitleSecurityEvaluation && !msg.FromOurApp
	if !domain.ConversationCapable(view.Route) || crossOrigin {
		return r.navigate(ctx, msg.ID)
	}

	return r.emitInline(ctx, msg)
}

// HandleShare persists a share payload. Shares never route anywhere; they
// are available to whichever view later queries storage.
func (r *InboundRouter) HandleShare(ctx context.Context, msg domain.ShareMessage) {
	if !r.views.Authenticated() {
		logger.Debug("Dropped share message from unauthenticated session", "message_id", msg.ID)
		return
	}

	if r.metrics != nil {
		r.metrics.MessagesReceived.Add(ctx, 1,
			metric.WithAttributes(otel.AttrMessageKind.String(domain.MessageKindShare)))
	}

	if err := r.store.AddShareMessage(ctx, msg); err != nil {
		logger.Error("Failed to persist share message", "message_id", msg.ID, "error", err)
		if r.metrics != nil {
			r.metrics.PersistErrors.Add(ctx, 1)
		}
		return
	}

	if r.metrics != nil {
		r.metrics.MessagesPersisted.Add(ctx, 1,
			metric.WithAttributes(otel.AttrMessageKind.String(domain.MessageKindShare)))
	}
	logger.Debug("Persisted share message", "message_id", msg.ID, "title", msg.Title)
}

// resolvePendingCall settles the oldest pending call for the message's
// tool when the message carries a decision this process should act on.
// Whether a match was found never changes the routing outcome.
func (r *InboundRouter) resolvePendingCall(msg domain.InboundMessage) {
	if !r.isApprovalBearing(msg.Title) || msg.Approved == nil || msg.ToolName == nil {
		return
	}
	// A security evaluation that this process did not issue belongs to
	// some other session on the account; settling a local call with a
	// stranger's decision would be wrong.
	if msg.Title == domain.TitleSecurityEvaluation && !msg.FromOurApp {
		logger.Debug("Skipping call resolution for cross-origin approval",
			"message_id", msg.ID,
			"tool", *msg.ToolName)
		return
	}

	outcome := domain.CallOutcome{
		Approved:  *msg.Approved,
		MessageID: msg.ID,
	}
	if msg.Result != nil {
		outcome.Payload = *msg.Result
	}

	if !r.registry.ResolveByToolName(*msg.ToolName, outcome) {
		logger.Debug("No pending call to resolve",
			"message_id", msg.ID,
			"tool", *msg.ToolName)
	}
}

func (r *InboundRouter) isApprovalBearing(title string) bool {
	_, ok := r.approvalTitles[title]
	return ok
}

func (r *InboundRouter) navigate(ctx context.Context, messageID string) domain.RouteAction {
	route := domain.MessageDetailRoute(messageID)
	trace.SpanFromContext(ctx).SetAttributes(otel.AttrRoute.String(route))
	if r.eventBus != nil {
		r.eventBus.Publish(domain.TopicNavigate, domain.NavigateDirective{
			MessageID: messageID,
			Route:     route,
		})
	}
	if r.metrics != nil {
		r.metrics.Navigations.Add(ctx, 1)
	}
	logger.Info("Navigating to message detail", "message_id", messageID, "route", route)
	return domain.RouteActionNavigate
}

func (r *InboundRouter) emitInline(ctx context.Context, msg domain.InboundMessage) domain.RouteAction {
	if r.eventBus != nil {
		r.eventBus.Publish(domain.TopicInlineApproval, domain.InlineApprovalEvent{Message: msg})
	}
	if r.metrics != nil {
		r.metrics.InlineApprovals.Add(ctx, 1)
	}
	logger.Info("Emitted inline approval", "message_id", msg.ID, "title", msg.Title)
	return domain.RouteActionInline
}
