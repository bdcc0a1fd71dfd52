package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	websocket "github.com/gorilla/websocket"

	bus "github.com/greenlight-dev/greenlight/internal/bus"
	constants "github.com/greenlight-dev/greenlight/internal/constants"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

type recordingHandler struct {
	mutex    sync.Mutex
	messages []domain.InboundMessage
	shares   []domain.ShareMessage
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg domain.InboundMessage) domain.RouteAction {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.messages = append(h.messages, msg)
	return domain.RouteActionNone
}

func (h *recordingHandler) HandleShare(_ context.Context, msg domain.ShareMessage) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.shares = append(h.shares, msg)
}

func (h *recordingHandler) messageIDs() []string {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	ids := make([]string, 0, len(h.messages))
	for _, msg := range h.messages {
		ids = append(ids, msg.ID)
	}
	return ids
}

func (h *recordingHandler) shareCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.shares)
}

type recordingSession struct {
	mutex         sync.Mutex
	authenticated []bool
	views         []domain.ViewContext
}

func (s *recordingSession) SetAuthenticated(authenticated bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.authenticated = append(s.authenticated, authenticated)
}

func (s *recordingSession) SetView(view domain.ViewContext) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.views = append(s.views, view)
}

func (s *recordingSession) lastView() (domain.ViewContext, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.views) == 0 {
		return domain.ViewContext{}, false
	}
	return s.views[len(s.views)-1], true
}

func (s *recordingSession) authCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.authenticated)
}

// frameServer upgrades incoming requests and runs the script once per
// connection. The dial number lets scripts behave differently across
// reconnects.
type frameServer struct {
	server *httptest.Server
	mutex  sync.Mutex
	dials  int
	auth   string
}

func newFrameServer(t *testing.T, script func(conn *websocket.Conn, dial int)) *frameServer {
	t.Helper()
	fs := &frameServer{}
	upgrader := websocket.Upgrader{}
	fs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mutex.Lock()
		fs.dials++
		dial := fs.dials
		fs.auth = r.Header.Get("Authorization")
		fs.mutex.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		script(conn, dial)
	}))
	t.Cleanup(fs.server.Close)
	return fs
}

func (fs *frameServer) url() string {
	return fs.server.URL
}

func (fs *frameServer) dialCount() int {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	return fs.dials
}

func (fs *frameServer) authHeader() string {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	return fs.auth
}

func sendFrame(conn *websocket.Conn, frame string) {
	_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// holdOpen blocks until the peer closes the connection.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func startClient(t *testing.T, cfg ClientConfig) *Client {
	t.Helper()
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	client.Start(context.Background())
	t.Cleanup(client.Stop)
	return client
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPushURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "https gateway", raw: "https://gw.example.com", want: "wss://gw.example.com/v1/push"},
		{name: "http gateway", raw: "http://localhost:8080", want: "ws://localhost:8080/v1/push"},
		{name: "trailing slash", raw: "http://localhost:8080/", want: "ws://localhost:8080/v1/push"},
		{name: "explicit ws url kept", raw: "ws://push.example.com/custom", want: "ws://push.example.com/custom"},
		{name: "explicit wss url kept", raw: "wss://push.example.com/custom", want: "wss://push.example.com/custom"},
		{name: "bare host", raw: "localhost:8080", want: "ws://localhost:8080/v1/push"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pushURL(tt.raw); got != tt.want {
				t.Errorf("pushURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: constants.PushReconnectBaseDelay},
		{attempt: 2, want: 2 * constants.PushReconnectBaseDelay},
		{attempt: 3, want: 4 * constants.PushReconnectBaseDelay},
		{attempt: 20, want: constants.PushReconnectMaxDelay},
	}

	for _, tt := range tests {
		if got := reconnectDelay(tt.attempt); got != tt.want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestClient_DeliversFramesInOrder(t *testing.T) {
	server := newFrameServer(t, func(conn *websocket.Conn, dial int) {
		sendFrame(conn, `{"type":"message","payload":{"id":"msg-1","title":"first"}}`)
		sendFrame(conn, `{"type":"message","payload":{"id":"msg-2","title":"second"}}`)
		sendFrame(conn, `{"type":"share","payload":{"id":"share-1","title":"notes","content":"body"}}`)
		holdOpen(conn)
	})

	handler := &recordingHandler{}
	startClient(t, ClientConfig{
		URL:     server.url(),
		Handler: handler,
		Session: &recordingSession{},
	})

	waitUntil(t, 2*time.Second, func() bool {
		return len(handler.messageIDs()) == 2 && handler.shareCount() == 1
	}, "frames were not delivered")

	ids := handler.messageIDs()
	if ids[0] != "msg-1" || ids[1] != "msg-2" {
		t.Errorf("messages arrived out of order: %v", ids)
	}
	if server.dialCount() != 1 {
		t.Errorf("expected a single connection, got %d", server.dialCount())
	}
}

func TestClient_ContextFrameFeedsSession(t *testing.T) {
	server := newFrameServer(t, func(conn *websocket.Conn, dial int) {
		sendFrame(conn, `{"type":"context","payload":{"authenticated":true,"route":"/chat/42","thread_id":"th-42","thread_title":"Deploy help"}}`)
		holdOpen(conn)
	})

	session := &recordingSession{}
	startClient(t, ClientConfig{
		URL:     server.url(),
		Handler: &recordingHandler{},
		Session: session,
	})

	waitUntil(t, 2*time.Second, func() bool {
		return session.authCount() == 1
	}, "context frame was not applied")

	view, ok := session.lastView()
	if !ok {
		t.Fatal("no view recorded")
	}
	if view.Route != "/chat/42" {
		t.Errorf("Route = %q, want %q", view.Route, "/chat/42")
	}
	if view.ThreadID == nil || *view.ThreadID != "th-42" {
		t.Errorf("ThreadID = %v, want %q", view.ThreadID, "th-42")
	}
	if view.ThreadTitle == nil || *view.ThreadTitle != "Deploy help" {
		t.Errorf("ThreadTitle = %v, want %q", view.ThreadTitle, "Deploy help")
	}
}

func TestClient_SkipsInvalidFrames(t *testing.T) {
	server := newFrameServer(t, func(conn *websocket.Conn, dial int) {
		sendFrame(conn, `not json at all`)
		sendFrame(conn, `{"type":"telemetry","payload":{}}`)
		sendFrame(conn, `{"type":"message","payload":{"title":"no id"}}`)
		sendFrame(conn, `{"type":"message","payload":{"id":"msg-ok","title":"valid"}}`)
		holdOpen(conn)
	})

	handler := &recordingHandler{}
	startClient(t, ClientConfig{
		URL:     server.url(),
		Handler: handler,
		Session: &recordingSession{},
	})

	waitUntil(t, 2*time.Second, func() bool {
		return len(handler.messageIDs()) == 1
	}, "valid frame after invalid ones was not delivered")

	if ids := handler.messageIDs(); ids[0] != "msg-ok" {
		t.Errorf("delivered %v, want only msg-ok", ids)
	}
	if server.dialCount() != 1 {
		t.Errorf("invalid frames must not drop the connection, got %d dials", server.dialCount())
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	server := newFrameServer(t, func(conn *websocket.Conn, dial int) {
		holdOpen(conn)
	})

	startClient(t, ClientConfig{
		URL:     server.url(),
		APIKey:  "test-key",
		Handler: &recordingHandler{},
		Session: &recordingSession{},
	})

	waitUntil(t, 2*time.Second, func() bool {
		return server.dialCount() == 1
	}, "client never connected")

	if got := server.authHeader(); got != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer test-key")
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	server := newFrameServer(t, func(conn *websocket.Conn, dial int) {
		switch dial {
		case 1:
			sendFrame(conn, `{"type":"message","payload":{"id":"msg-before","title":"t"}}`)
			// Returning closes the connection and forces a reconnect.
		default:
			sendFrame(conn, `{"type":"message","payload":{"id":"msg-after","title":"t"}}`)
			holdOpen(conn)
		}
	})

	eventBus := bus.New()
	sub := eventBus.Subscribe(domain.TopicPushState)
	defer eventBus.Unsubscribe(sub)

	handler := &recordingHandler{}
	startClient(t, ClientConfig{
		URL:      server.url(),
		Handler:  handler,
		Session:  &recordingSession{},
		EventBus: eventBus,
	})

	waitUntil(t, 5*time.Second, func() bool {
		return len(handler.messageIDs()) == 2
	}, "frame after reconnect was not delivered")

	if server.dialCount() < 2 {
		t.Errorf("expected at least 2 dials, got %d", server.dialCount())
	}

	var sawDrop, reconnected bool
	for done := false; !done; {
		select {
		case event := <-sub.Ch():
			state, ok := event.Payload.(domain.PushStateEvent)
			if !ok {
				t.Fatalf("unexpected payload %T", event.Payload)
			}
			if !state.Connected && state.Err != "" {
				sawDrop = true
			}
			if state.Connected && sawDrop {
				reconnected = true
				done = true
			}
		case <-time.After(2 * time.Second):
			done = true
		}
	}
	if !sawDrop {
		t.Error("no disconnect state event was published")
	}
	if !reconnected {
		t.Error("no reconnect state event was published")
	}
}

func TestClient_PublishesConnectedState(t *testing.T) {
	server := newFrameServer(t, func(conn *websocket.Conn, dial int) {
		holdOpen(conn)
	})

	eventBus := bus.New()
	sub := eventBus.Subscribe(domain.TopicPushState)
	defer eventBus.Unsubscribe(sub)

	startClient(t, ClientConfig{
		URL:      server.url(),
		Handler:  &recordingHandler{},
		Session:  &recordingSession{},
		EventBus: eventBus,
	})

	select {
	case event := <-sub.Ch():
		state, ok := event.Payload.(domain.PushStateEvent)
		if !ok {
			t.Fatalf("unexpected payload %T", event.Payload)
		}
		if !state.Connected {
			t.Errorf("first state event = %+v, want connected", state)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no connection state event was published")
	}
}

func TestClient_DialFailureRetriesWithAttemptCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	eventBus := bus.New()
	sub := eventBus.Subscribe(domain.TopicPushState)
	defer eventBus.Unsubscribe(sub)

	startClient(t, ClientConfig{
		URL:      server.URL,
		Handler:  &recordingHandler{},
		Session:  &recordingSession{},
		EventBus: eventBus,
	})

	var attempts []int
	deadline := time.After(5 * time.Second)
	for len(attempts) < 2 {
		select {
		case event := <-sub.Ch():
			state, ok := event.Payload.(domain.PushStateEvent)
			if !ok {
				t.Fatalf("unexpected payload %T", event.Payload)
			}
			if state.Connected {
				t.Fatalf("connected to a closed server: %+v", state)
			}
			if state.Err == "" {
				t.Errorf("failure event carries no error: %+v", state)
			}
			attempts = append(attempts, state.Attempt)
		case <-deadline:
			t.Fatalf("saw only %d failure events", len(attempts))
		}
	}

	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("attempt sequence = %v, want [1 2]", attempts)
	}
}

func TestClient_StopUnblocksRead(t *testing.T) {
	server := newFrameServer(t, func(conn *websocket.Conn, dial int) {
		holdOpen(conn)
	})

	client, err := NewClient(ClientConfig{
		URL:     server.url(),
		Handler: &recordingHandler{},
		Session: &recordingSession{},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	client.Start(context.Background())

	waitUntil(t, 2*time.Second, func() bool {
		return server.dialCount() == 1
	}, "client never connected")

	stopped := make(chan struct{})
	go func() {
		client.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a read was pending")
	}
}
