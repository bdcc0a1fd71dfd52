package domain

import "strings"

// Routes the presentation layer reports. The router only distinguishes
// conversation-capable routes from everything else, plus the home route
// for the persistence-failure recovery path.
const (
	RouteHome          = "/"
	RouteSettings      = "/settings"
	RouteChatPrefix    = "/chat/"
	RouteMessagePrefix = "/messages/"
)

// ConversationCapable reports whether the route can render an inline
// approval affordance without navigating away.
func ConversationCapable(route string) bool {
	return route == RouteHome || strings.HasPrefix(route, RouteChatPrefix)
}

// MessageDetailRoute returns the detail-view route for a stored message
func MessageDetailRoute(messageID string) string {
	return RouteMessagePrefix + messageID
}

// ViewContext describes what the user is currently looking at. It is
// supplied by the presentation layer and re-read on every inbound
// message, never cached by the router.
type ViewContext struct {
	Route       string
	ThreadID    *string
	ThreadTitle *string
}

// HasThread reports whether an active conversation thread exists
func (v ViewContext) HasThread() bool {
	return v.ThreadID != nil && *v.ThreadID != ""
}
