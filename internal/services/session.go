package services

import (
	"sync"

	bus "github.com/greenlight-dev/greenlight/internal/bus"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
	logger "github.com/greenlight-dev/greenlight/internal/logger"
)

// SessionGate holds the presentation context the router reads for every
// inbound message: what the user is looking at and whether the session is
// authenticated. The desktop shell reports context changes over the push
// channel; the router reads them fresh each message, never cached.
type SessionGate struct {
	mutex         sync.RWMutex
	view          domain.ViewContext
	authenticated bool
	eventBus      *bus.Bus
}

var _ domain.ViewContextProvider = (*SessionGate)(nil)

// NewSessionGate creates a gate starting unauthenticated at the home route
func NewSessionGate(eventBus *bus.Bus) *SessionGate {
	return &SessionGate{
		view:     domain.ViewContext{Route: domain.RouteHome},
		eventBus: eventBus,
	}
}

// CurrentView returns the presentation context as of now
func (g *SessionGate) CurrentView() domain.ViewContext {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.view
}

// Authenticated reports whether inbound messages may be processed at all
func (g *SessionGate) Authenticated() bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.authenticated
}

// SetAuthenticated flips the processing gate
func (g *SessionGate) SetAuthenticated(authenticated bool) {
	g.mutex.Lock()
	changed := g.authenticated != authenticated
	g.authenticated = authenticated
	g.mutex.Unlock()

	if changed {
		logger.Info("Session authentication changed", "authenticated", authenticated)
	}
}

// SetView replaces the presentation context and mirrors the change onto
// the bus for observers
func (g *SessionGate) SetView(view domain.ViewContext) {
	g.mutex.Lock()
	g.view = view
	g.mutex.Unlock()

	if g.eventBus != nil {
		g.eventBus.Publish(domain.TopicViewChanged, domain.ViewChangedEvent{View: view})
	}

	logger.Debug("View context updated",
		"route", view.Route,
		"has_thread", view.HasThread())
}
