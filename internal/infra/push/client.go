package push

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	websocket "github.com/gorilla/websocket"
	zap "go.uber.org/zap"

	bus "github.com/greenlight-dev/greenlight/internal/bus"
	constants "github.com/greenlight-dev/greenlight/internal/constants"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
	logger "github.com/greenlight-dev/greenlight/internal/logger"
	otel "github.com/greenlight-dev/greenlight/internal/otel"
)

const pushPath = "/v1/push"

// Handler consumes classified push payloads. The router satisfies this.
type Handler interface {
	HandleMessage(ctx context.Context, msg domain.InboundMessage) domain.RouteAction
	HandleShare(ctx context.Context, msg domain.ShareMessage)
}

// SessionSink receives presentation-context updates decoded from context
// frames. The session gate satisfies this.
type SessionSink interface {
	SetAuthenticated(authenticated bool)
	SetView(view domain.ViewContext)
}

// ClientConfig holds the dependencies for the push client.
type ClientConfig struct {
	// URL is the push endpoint. An http(s) gateway URL is accepted and
	// rewritten to ws(s) with the push path appended.
	URL      string
	APIKey   string
	Handler  Handler
	Session  SessionSink
	EventBus *bus.Bus
	Metrics  *otel.Metrics
}

// Client maintains the websocket connection to the push endpoint,
// reconnecting with bounded backoff. Frames are processed strictly in
// delivery order on a single goroutine; the coordinator depends on a
// context frame taking effect before the messages that follow it.
type Client struct {
	url       string
	apiKey    string
	handler   Handler
	session   SessionSink
	validator *EnvelopeValidator
	eventBus  *bus.Bus
	metrics   *otel.Metrics
	dialer    *websocket.Dialer

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex sync.Mutex
	conn  *websocket.Conn
}

// NewClient creates a push client. It fails only when the envelope schema
// does not compile.
func NewClient(cfg ClientConfig) (*Client, error) {
	validator, err := NewEnvelopeValidator()
	if err != nil {
		return nil, err
	}
	return &Client{
		url:       pushURL(cfg.URL),
		apiKey:    cfg.APIKey,
		handler:   cfg.Handler,
		session:   cfg.Session,
		validator: validator,
		eventBus:  cfg.EventBus,
		metrics:   cfg.Metrics,
		dialer: &websocket.Dialer{
			HandshakeTimeout: constants.PushHandshakeTimeout,
		},
	}, nil
}

// pushURL rewrites an http(s) gateway URL to the ws(s) push endpoint.
// URLs already carrying a ws scheme and path are used as-is.
func pushURL(raw string) string {
	url := strings.TrimRight(raw, "/")
	switch {
	case strings.HasPrefix(url, "ws://"), strings.HasPrefix(url, "wss://"):
		return url
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://") + pushPath
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://") + pushPath
	default:
		return "ws://" + url + pushPath
	}
}

// Start begins the connect-and-read loop in a background goroutine.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
	logger.Info("Push client started", "url", c.url)
}

// Stop tears the connection down and waits for the loop to exit.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.closeConn()
	c.wg.Wait()
	logger.Info("Push client stopped")
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			attempt++
			c.publishState(domain.PushStateEvent{Connected: false, Err: err.Error(), Attempt: attempt})
			if c.metrics != nil {
				c.metrics.PushReconnects.Add(ctx, 1)
			}
			delay := reconnectDelay(attempt)
			logger.Warn("Push connection failed",
				"error", err,
				"attempt", attempt,
				"retry_in", delay.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		c.setConn(conn)
		c.publishState(domain.PushStateEvent{Connected: true})
		logger.Info("Push channel connected", "url", c.url)

		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.publishState(domain.PushStateEvent{Connected: false, Err: errString(err)})
		if c.metrics != nil {
			c.metrics.PushReconnects.Add(ctx, 1)
		}
		logger.Warn("Push channel dropped, reconnecting", "error", err)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// readLoop consumes frames until the connection breaks or the context is
// cancelled. A goroutine closes the connection on cancellation to unblock
// the pending ReadMessage.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(constants.PushReadLimit)
	deadline := func() error {
		return conn.SetReadDeadline(time.Now().Add(2 * constants.PushPingInterval))
	}
	if err := deadline(); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error { return deadline() })

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	go c.pingLoop(conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(ctx, data)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(constants.PushPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(constants.PushHandshakeTimeout))
			if err != nil {
				return
			}
		}
	}
}

// handleFrame validates, classifies, and dispatches one frame. Invalid
// frames are counted and dropped; one bad frame must not drop the
// connection.
func (c *Client) handleFrame(ctx context.Context, data []byte) {
	env, err := c.validator.Validate(data)
	if err != nil {
		c.countInvalid(ctx)
		logger.Warn("Discarded invalid push frame", "error", err)
		return
	}

	ctx, span := otel.StartConsumerSpan(ctx, otel.Tracer(), "push."+env.Type)
	defer span.End()

	// Downstream handlers log through the context, so every line they
	// emit carries the frame type that triggered it.
	ctx = logger.With(ctx, zap.String("push_frame", env.Type))

	switch env.Type {
	case FrameMessage:
		msg, err := env.DecodeMessage()
		if err != nil {
			c.countInvalid(ctx)
			logger.Warn("Discarded undecodable message frame", "error", err)
			return
		}
		span.SetAttributes(otel.AttrMessageID.String(msg.ID))
		c.handler.HandleMessage(ctx, msg)

	case FrameShare:
		msg, err := env.DecodeShare()
		if err != nil {
			c.countInvalid(ctx)
			logger.Warn("Discarded undecodable share frame", "error", err)
			return
		}
		span.SetAttributes(otel.AttrMessageID.String(msg.ID))
		c.handler.HandleShare(ctx, msg)

	case FrameContext:
		frame, err := env.DecodeContext()
		if err != nil {
			c.countInvalid(ctx)
			logger.Warn("Discarded undecodable context frame", "error", err)
			return
		}
		c.session.SetAuthenticated(frame.Authenticated)
		c.session.SetView(domain.ViewContext{
			Route:       frame.Route,
			ThreadID:    frame.ThreadID,
			ThreadTitle: frame.ThreadTitle,
		})

	case FramePing:
		// Liveness probe; the read deadline reset is the whole effect.
	}
}

func (c *Client) countInvalid(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.InvalidEnvelopes.Add(ctx, 1)
	}
}

func (c *Client) publishState(event domain.PushStateEvent) {
	if c.eventBus != nil {
		c.eventBus.Publish(domain.TopicPushState, event)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mutex.Lock()
	c.conn = conn
	c.mutex.Unlock()
}

func (c *Client) closeConn() {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// reconnectDelay doubles from the base delay per consecutive failure, up
// to the cap.
func reconnectDelay(attempt int) time.Duration {
	delay := constants.PushReconnectBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= constants.PushReconnectMaxDelay {
			return constants.PushReconnectMaxDelay
		}
	}
	return delay
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
