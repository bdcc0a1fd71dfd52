package container

import (
	"context"
	"fmt"
	"time"

	viper "github.com/spf13/viper"

	config "github.com/greenlight-dev/greenlight/config"
	bus "github.com/greenlight-dev/greenlight/internal/bus"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
	push "github.com/greenlight-dev/greenlight/internal/infra/push"
	storage "github.com/greenlight-dev/greenlight/internal/infra/storage"
	logger "github.com/greenlight-dev/greenlight/internal/logger"
	otel "github.com/greenlight-dev/greenlight/internal/otel"
	services "github.com/greenlight-dev/greenlight/internal/services"
)

// ServiceContainer manages all application dependencies
type ServiceContainer struct {
	// Configuration
	viper         *viper.Viper
	config        *config.Config
	configService *services.ConfigService

	// Telemetry
	otelProvider *otel.Provider
	metrics      *otel.Metrics

	// Messaging backbone
	eventBus *bus.Bus
	store    domain.MessageStore

	// Coordination services
	registry    *services.PendingCallRegistry
	matcher     *services.FingerprintMatcher
	sessionGate *services.SessionGate
	router      *services.InboundRouter
	reaper      *services.StaleCallReaper

	// Gateway-facing services
	httpClient *services.RetryableHTTPClient
	dispatcher *services.ToolDispatcher
	pushClient *push.Client
}

// NewServiceContainer creates a service container with all dependencies
// wired. Construction fails when a backend cannot be opened or a
// configured schedule does not parse; nothing is started yet.
func NewServiceContainer(ctx context.Context, cfg *config.Config, v ...*viper.Viper) (*ServiceContainer, error) {
	container := &ServiceContainer{
		config: cfg,
	}

	if len(v) > 0 && v[0] != nil {
		container.viper = v[0]
		container.configService = services.NewConfigService(v[0], cfg)
	}

	if err := container.initializeTelemetry(ctx); err != nil {
		return nil, err
	}
	if err := container.initializeMessaging(); err != nil {
		return nil, err
	}
	if err := container.initializeCoordination(); err != nil {
		return nil, err
	}
	if err := container.initializeGateway(); err != nil {
		return nil, err
	}

	return container, nil
}

// initializeTelemetry sets up the tracer and meter providers plus the
// metric instruments the services record on
func (c *ServiceContainer) initializeTelemetry(ctx context.Context) error {
	provider, err := otel.Init(ctx, c.config.Telemetry)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	c.otelProvider = provider

	metrics, err := otel.NewMetrics(provider.Meter)
	if err != nil {
		return fmt.Errorf("create metric instruments: %w", err)
	}
	c.metrics = metrics
	return nil
}

// initializeMessaging creates the event bus and opens the message store
func (c *ServiceContainer) initializeMessaging() error {
	c.eventBus = bus.New()

	store, err := storage.NewMessageStore(c.config.Storage)
	if err != nil {
		return fmt.Errorf("open message store: %w", err)
	}
	c.store = store
	logger.Info("Message store opened", "type", c.config.Storage.Type)
	return nil
}

// initializeCoordination wires the registry, matcher, session gate,
// router, and the stale-call reaper
func (c *ServiceContainer) initializeCoordination() error {
	c.registry = services.NewPendingCallRegistry(c.eventBus, c.metrics)
	c.matcher = services.NewFingerprintMatcher(c.config.Coordinator.OriginMarkers)
	c.sessionGate = services.NewSessionGate(c.eventBus)
	c.router = services.NewInboundRouter(
		c.store,
		c.registry,
		c.matcher,
		c.sessionGate,
		c.eventBus,
		c.metrics,
		c.config.Coordinator.ApprovalTitles,
	)

	reaper, err := services.NewStaleCallReaper(services.ReaperConfig{
		Registry: c.registry,
		EventBus: c.eventBus,
		Schedule: c.config.Coordinator.SweepSchedule,
		MaxAge:   c.config.Coordinator.CallTimeout(),
	})
	if err != nil {
		return err
	}
	c.reaper = reaper
	return nil
}

// initializeGateway wires the dispatcher and the push client against the
// configured gateway endpoints
func (c *ServiceContainer) initializeGateway() error {
	c.httpClient = services.NewRetryableHTTPClient(c.gatewayTimeout(), services.DefaultRetryConfig())
	c.dispatcher = services.NewToolDispatcher(
		c.registry,
		c.httpClient,
		c.metrics,
		c.gatewayURL(),
		c.config.Gateway.APIKey,
	)

	pushURL := c.config.Gateway.PushURL
	if pushURL == "" {
		pushURL = c.gatewayURL()
	}
	pushClient, err := push.NewClient(push.ClientConfig{
		URL:      pushURL,
		APIKey:   c.config.Gateway.APIKey,
		Handler:  c.router,
		Session:  c.sessionGate,
		EventBus: c.eventBus,
		Metrics:  c.metrics,
	})
	if err != nil {
		return fmt.Errorf("create push client: %w", err)
	}
	c.pushClient = pushClient
	return nil
}

func (c *ServiceContainer) gatewayURL() string {
	if c.config.Gateway.URL == "" {
		return "http://localhost:8080"
	}
	return c.config.Gateway.URL
}

func (c *ServiceContainer) gatewayTimeout() time.Duration {
	timeout := c.config.Gateway.Timeout
	if timeout <= 0 {
		timeout = 30
	}
	return time.Duration(timeout) * time.Second
}

// Start launches the background services: the stale-call reaper and the
// push channel client
func (c *ServiceContainer) Start(ctx context.Context) {
	c.reaper.Start(ctx)
	c.pushClient.Start(ctx)
	logger.Info("Coordinator services started",
		"gateway_url", c.gatewayURL(),
		"sweep_schedule", c.reaper.Schedule())
}

// Shutdown stops intake, abandons whatever is still pending so blocked
// callers unblock with a timeout error, and releases the backends.
func (c *ServiceContainer) Shutdown(ctx context.Context) error {
	c.pushClient.Stop()
	c.reaper.Stop()

	if abandoned := c.registry.Cleanup(0); len(abandoned) > 0 {
		logger.Warn("Abandoned pending calls on shutdown", "count", len(abandoned))
	}

	var firstErr error
	if err := c.store.Close(); err != nil {
		logger.Error("Failed to close message store", "error", err)
		firstErr = err
	}
	if err := c.otelProvider.Shutdown(ctx); err != nil {
		logger.Error("Failed to shut down telemetry", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *ServiceContainer) GetConfig() *config.Config {
	return c.config
}

func (c *ServiceContainer) GetEventBus() *bus.Bus {
	return c.eventBus
}

func (c *ServiceContainer) GetMessageStore() domain.MessageStore {
	return c.store
}

func (c *ServiceContainer) GetCallRegistry() *services.PendingCallRegistry {
	return c.registry
}

func (c *ServiceContainer) GetFingerprintMatcher() *services.FingerprintMatcher {
	return c.matcher
}

func (c *ServiceContainer) GetSessionGate() *services.SessionGate {
	return c.sessionGate
}

func (c *ServiceContainer) GetRouter() *services.InboundRouter {
	return c.router
}

func (c *ServiceContainer) GetReaper() *services.StaleCallReaper {
	return c.reaper
}

func (c *ServiceContainer) GetDispatcher() *services.ToolDispatcher {
	return c.dispatcher
}

func (c *ServiceContainer) GetPushClient() *push.Client {
	return c.pushClient
}

func (c *ServiceContainer) GetMetrics() *otel.Metrics {
	return c.metrics
}

// GetViper returns the Viper instance
func (c *ServiceContainer) GetViper() *viper.Viper {
	return c.viper
}

// GetConfigService returns the config service
func (c *ServiceContainer) GetConfigService() *services.ConfigService {
	return c.configService
}
