package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	bus "github.com/greenlight-dev/greenlight/internal/bus"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

type fakeMessageStore struct {
	mutex    sync.Mutex
	messages []domain.InboundMessage
	shares   []domain.ShareMessage
	failNext error
}

func (s *fakeMessageStore) AddMessage(ctx context.Context, msg domain.InboundMessage) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeMessageStore) AddShareMessage(ctx context.Context, msg domain.ShareMessage) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.shares = append(s.shares, msg)
	return nil
}

func (s *fakeMessageStore) GetMessage(ctx context.Context, id string) (*domain.StoredMessage, error) {
	return nil, domain.ErrMessageNotFound
}

func (s *fakeMessageStore) ListMessages(ctx context.Context, limit int) ([]domain.StoredMessage, error) {
	return nil, nil
}

func (s *fakeMessageStore) CountMessages(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.messages) + len(s.shares), nil
}

func (s *fakeMessageStore) Health(ctx context.Context) error { return nil }
func (s *fakeMessageStore) Close() error                     { return nil }

func (s *fakeMessageStore) storedMessages() []domain.InboundMessage {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]domain.InboundMessage(nil), s.messages...)
}

type routerFixture struct {
	router   *InboundRouter
	store    *fakeMessageStore
	registry *PendingCallRegistry
	gate     *SessionGate
	eventBus *bus.Bus
}

func newRouterFixture() *routerFixture {
	eventBus := bus.New()
	store := &fakeMessageStore{}
	registry := NewPendingCallRegistry(nil, nil)
	gate := NewSessionGate(nil)
	gate.SetAuthenticated(true)

	router := NewInboundRouter(store, registry, NewFingerprintMatcher(nil), gate, eventBus, nil, nil)
	return &routerFixture{
		router:   router,
		store:    store,
		registry: registry,
		gate:     gate,
		eventBus: eventBus,
	}
}

func ownSecurityEvaluation(id, tool string, approved bool) domain.InboundMessage {
	explanation := fmt.Sprintf(domain.ExplanationTemplate, tool)
	return domain.InboundMessage{
		ID:          id,
		Title:       domain.TitleSecurityEvaluation,
		Explanation: &explanation,
		ToolName:    &tool,
		Approved:    &approved,
		ReceivedAt:  time.Now(),
	}
}

func foreignSecurityEvaluation(id, tool string, approved bool) domain.InboundMessage {
	explanation := "Another client wants to execute " + tool
	return domain.InboundMessage{
		ID:          id,
		Title:       domain.TitleSecurityEvaluation,
		Explanation: &explanation,
		ToolName:    &tool,
		Approved:    &approved,
		ReceivedAt:  time.Now(),
	}
}

func codeResponseApproval(id, tool string, approved bool) domain.InboundMessage {
	return domain.InboundMessage{
		ID:         id,
		Title:      domain.TitleCodeResponseApproval,
		ToolName:   &tool,
		Approved:   &approved,
		ReceivedAt: time.Now(),
	}
}

func TestInboundRouter_DecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		route      string
		message    domain.InboundMessage
		wantAction domain.RouteAction
	}{
		{
			name:       "own security evaluation on conversation view renders inline",
			route:      domain.RouteHome,
			message:    ownSecurityEvaluation("msg-1", "run_code", true),
			wantAction: domain.RouteActionInline,
		},
		{
			name:       "foreign security evaluation on conversation view navigates",
			route:      domain.RouteHome,
			message:    foreignSecurityEvaluation("msg-2", "run_code", true),
			wantAction: domain.RouteActionNavigate,
		},
		{
			name:       "code response approval on chat view renders inline without origin check",
			route:      "/chat/abc",
			message:    codeResponseApproval("msg-3", "run_code", true),
			wantAction: domain.RouteActionInline,
		},
		{
			name:       "code response approval on settings navigates",
			route:      domain.RouteSettings,
			message:    codeResponseApproval("msg-4", "run_code", true),
			wantAction: domain.RouteActionNavigate,
		},
		{
			name:  "informational title persists without routing",
			route: domain.RouteHome,
			message: domain.InboundMessage{
				ID:         "msg-5",
				Title:      "Informational",
				ReceivedAt: time.Now(),
			},
			wantAction: domain.RouteActionNone,
		},
		{
			name:       "own security evaluation on settings navigates",
			route:      domain.RouteSettings,
			message:    ownSecurityEvaluation("msg-6", "run_code", true),
			wantAction: domain.RouteActionNavigate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newRouterFixture()
			fixture.gate.SetView(domain.ViewContext{Route: tt.route})

			action := fixture.router.HandleMessage(context.Background(), tt.message)

			if action != tt.wantAction {
				t.Errorf("expected action %s, got %s", tt.wantAction, action)
			}
			if len(fixture.store.storedMessages()) != 1 {
				t.Errorf("expected 1 persisted message, got %d", len(fixture.store.storedMessages()))
			}
		})
	}
}

func TestInboundRouter_UnauthenticatedDropsEverything(t *testing.T) {
	fixture := newRouterFixture()
	fixture.gate.SetAuthenticated(false)
	sub := fixture.eventBus.Subscribe("")
	defer fixture.eventBus.Unsubscribe(sub)

	action := fixture.router.HandleMessage(context.Background(), ownSecurityEvaluation("msg-1", "run_code", true))
	fixture.router.HandleShare(context.Background(), domain.ShareMessage{ID: "share-1", Title: "notes"})

	if action != domain.RouteActionNone {
		t.Errorf("expected no action, got %s", action)
	}
	count, _ := fixture.store.CountMessages(context.Background())
	if count != 0 {
		t.Errorf("expected nothing persisted, got %d records", count)
	}
	select {
	case event := <-sub.Ch():
		t.Fatalf("expected no bus traffic, got %s", event.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInboundRouter_NavigateDirectiveTargetsDetailRoute(t *testing.T) {
	fixture := newRouterFixture()
	fixture.gate.SetView(domain.ViewContext{Route: domain.RouteSettings})
	sub := fixture.eventBus.Subscribe(domain.TopicNavigate)
	defer fixture.eventBus.Unsubscribe(sub)

	fixture.router.HandleMessage(context.Background(), codeResponseApproval("msg-77", "run_code", true))

	select {
	case event := <-sub.Ch():
		directive, ok := event.Payload.(domain.NavigateDirective)
		if !ok {
			t.Fatalf("expected NavigateDirective payload, got %T", event.Payload)
		}
		if directive.MessageID != "msg-77" {
			t.Errorf("expected message ID msg-77, got %s", directive.MessageID)
		}
		if directive.Route != "/messages/msg-77" {
			t.Errorf("expected route /messages/msg-77, got %s", directive.Route)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no navigate directive published")
	}
}

func TestInboundRouter_InlineEventCarriesEnrichedMessage(t *testing.T) {
	fixture := newRouterFixture()
	threadID := "thread-12"
	threadTitle := "release planning"
	fixture.gate.SetView(domain.ViewContext{
		Route:       "/chat/abc",
		ThreadID:    &threadID,
		ThreadTitle: &threadTitle,
	})
	sub := fixture.eventBus.Subscribe(domain.TopicInlineApproval)
	defer fixture.eventBus.Unsubscribe(sub)

	fixture.router.HandleMessage(context.Background(), ownSecurityEvaluation("msg-8", "run_code", true))

	select {
	case event := <-sub.Ch():
		inline, ok := event.Payload.(domain.InlineApprovalEvent)
		if !ok {
			t.Fatalf("expected InlineApprovalEvent payload, got %T", event.Payload)
		}
		if inline.Message.ID != "msg-8" {
			t.Errorf("expected message msg-8, got %s", inline.Message.ID)
		}
		if inline.Message.ThreadID == nil || *inline.Message.ThreadID != threadID {
			t.Error("inline event should carry the enriched thread ID")
		}
		if !inline.Message.FromOurApp {
			t.Error("inline event should carry the computed origin hint")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no inline approval event published")
	}
}

func TestInboundRouter_Enrichment(t *testing.T) {
	threadID := "thread-3"
	threadTitle := "incident review"

	tests := []struct {
		name       string
		view       domain.ViewContext
		wantThread bool
	}{
		{
			name:       "conversation view with active thread",
			view:       domain.ViewContext{Route: "/chat/xyz", ThreadID: &threadID, ThreadTitle: &threadTitle},
			wantThread: true,
		},
		{
			name:       "conversation view without a thread",
			view:       domain.ViewContext{Route: domain.RouteHome},
			wantThread: false,
		},
		{
			name:       "non-conversation view with a thread",
			view:       domain.ViewContext{Route: domain.RouteSettings, ThreadID: &threadID, ThreadTitle: &threadTitle},
			wantThread: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newRouterFixture()
			fixture.gate.SetView(tt.view)

			fixture.router.HandleMessage(context.Background(), ownSecurityEvaluation("msg-1", "run_code", true))

			stored := fixture.store.storedMessages()
			if len(stored) != 1 {
				t.Fatalf("expected 1 persisted message, got %d", len(stored))
			}
			gotThread := stored[0].ThreadID != nil
			if gotThread != tt.wantThread {
				t.Errorf("expected thread attached=%v, got %v", tt.wantThread, gotThread)
			}
			if tt.wantThread && *stored[0].ThreadTitle != threadTitle {
				t.Errorf("expected thread title %q, got %q", threadTitle, *stored[0].ThreadTitle)
			}
		})
	}
}

func TestInboundRouter_ResolvesPendingCall(t *testing.T) {
	tests := []struct {
		name        string
		message     func(tool string) domain.InboundMessage
		wantSettled bool
	}{
		{
			name: "own security evaluation settles the call",
			message: func(tool string) domain.InboundMessage {
				return ownSecurityEvaluation("msg-1", tool, true)
			},
			wantSettled: true,
		},
		{
			name: "foreign security evaluation leaves the call pending",
			message: func(tool string) domain.InboundMessage {
				return foreignSecurityEvaluation("msg-2", tool, true)
			},
			wantSettled: false,
		},
		{
			name: "code response approval settles without origin check",
			message: func(tool string) domain.InboundMessage {
				return codeResponseApproval("msg-3", tool, false)
			},
			wantSettled: true,
		},
		{
			name: "informational message never settles",
			message: func(tool string) domain.InboundMessage {
				return domain.InboundMessage{ID: "msg-4", Title: "Informational", ToolName: &tool, ReceivedAt: time.Now()}
			},
			wantSettled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newRouterFixture()
			fixture.gate.SetView(domain.ViewContext{Route: domain.RouteHome})
			ticket := fixture.registry.Register("run_code")

			fixture.router.HandleMessage(context.Background(), tt.message("run_code"))

			if tt.wantSettled {
				outcome := receiveOutcome(t, ticket)
				if outcome.MessageID == "" {
					t.Error("expected the settling message's ID on the outcome")
				}
				if fixture.registry.Count() != 0 {
					t.Errorf("expected registry emptied, %d still pending", fixture.registry.Count())
				}
			} else {
				assertNoOutcome(t, ticket)
				if fixture.registry.Count() != 1 {
					t.Errorf("expected call still pending, count=%d", fixture.registry.Count())
				}
			}
		})
	}
}

func TestInboundRouter_ResolutionCarriesDecisionAndResult(t *testing.T) {
	fixture := newRouterFixture()
	fixture.gate.SetView(domain.ViewContext{Route: domain.RouteHome})
	ticket := fixture.registry.Register("run_code")

	result := `{"stdout":"42"}`
	msg := ownSecurityEvaluation("msg-10", "run_code", false)
	msg.Result = &result
	fixture.router.HandleMessage(context.Background(), msg)

	outcome := receiveOutcome(t, ticket)
	if outcome.Approved {
		t.Error("expected the denial carried through")
	}
	if outcome.Payload != result {
		t.Errorf("expected payload %q, got %q", result, outcome.Payload)
	}
	if outcome.MessageID != "msg-10" {
		t.Errorf("expected message ID msg-10, got %s", outcome.MessageID)
	}
}

func TestInboundRouter_PersistFailure(t *testing.T) {
	tests := []struct {
		name       string
		route      string
		message    domain.InboundMessage
		wantAction domain.RouteAction
	}{
		{
			name:       "approval on non-home view still navigates",
			route:      domain.RouteSettings,
			message:    codeResponseApproval("msg-1", "run_code", true),
			wantAction: domain.RouteActionNavigate,
		},
		{
			name:       "approval on home view does not navigate",
			route:      domain.RouteHome,
			message:    ownSecurityEvaluation("msg-2", "run_code", true),
			wantAction: domain.RouteActionNone,
		},
		{
			name:  "non-approval message does nothing",
			route: domain.RouteSettings,
			message: domain.InboundMessage{
				ID:         "msg-3",
				Title:      "Informational",
				ReceivedAt: time.Now(),
			},
			wantAction: domain.RouteActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newRouterFixture()
			fixture.gate.SetView(domain.ViewContext{Route: tt.route})
			fixture.store.failNext = errors.New("disk full")

			action := fixture.router.HandleMessage(context.Background(), tt.message)

			if action != tt.wantAction {
				t.Errorf("expected action %s, got %s", tt.wantAction, action)
			}
			if len(fixture.store.storedMessages()) != 0 {
				t.Error("persistence should have failed")
			}
		})
	}
}

func TestInboundRouter_PersistFailureStillSettlesCall(t *testing.T) {
	fixture := newRouterFixture()
	fixture.gate.SetView(domain.ViewContext{Route: domain.RouteHome})
	fixture.store.failNext = errors.New("disk full")
	ticket := fixture.registry.Register("run_code")

	fixture.router.HandleMessage(context.Background(), ownSecurityEvaluation("msg-1", "run_code", true))

	outcome := receiveOutcome(t, ticket)
	if !outcome.Approved {
		t.Error("the waiting caller should still receive the decision")
	}
}

func TestInboundRouter_HandleShare(t *testing.T) {
	fixture := newRouterFixture()
	sender := "ana"

	fixture.router.HandleShare(context.Background(), domain.ShareMessage{
		ID:         "share-1",
		Title:      "shared collection",
		Content:    "three saved prompts",
		SenderName: &sender,
		ReceivedAt: time.Now(),
	})

	if len(fixture.store.shares) != 1 {
		t.Fatalf("expected 1 persisted share, got %d", len(fixture.store.shares))
	}
	if fixture.store.shares[0].ID != "share-1" {
		t.Errorf("expected share-1 persisted, got %s", fixture.store.shares[0].ID)
	}
}

func TestInboundRouter_ShareNeverRoutes(t *testing.T) {
	fixture := newRouterFixture()
	sub := fixture.eventBus.Subscribe("ui.")
	defer fixture.eventBus.Unsubscribe(sub)

	fixture.router.HandleShare(context.Background(), domain.ShareMessage{ID: "share-2", Title: "notes"})

	select {
	case event := <-sub.Ch():
		t.Fatalf("shares must not produce ui directives, got %s", event.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInboundRouter_CustomApprovalTitles(t *testing.T) {
	eventBus := bus.New()
	store := &fakeMessageStore{}
	gate := NewSessionGate(nil)
	gate.SetAuthenticated(true)
	gate.SetView(domain.ViewContext{Route: domain.RouteSettings})

	router := NewInboundRouter(store, NewPendingCallRegistry(nil, nil), NewFingerprintMatcher(nil),
		gate, eventBus, nil, []string{"deploy gate"})

	action := router.HandleMessage(context.Background(), domain.InboundMessage{
		ID:         "msg-1",
		Title:      "deploy gate",
		ReceivedAt: time.Now(),
	})
	if action != domain.RouteActionNavigate {
		t.Errorf("configured title should be approval-bearing, got %s", action)
	}

	action = router.HandleMessage(context.Background(), codeResponseApproval("msg-2", "run_code", true))
	if action != domain.RouteActionNone {
		t.Errorf("built-in title should not apply once overridden, got %s", action)
	}
}
