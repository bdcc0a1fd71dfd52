package services

import (
	"strings"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

// FingerprintMatcher decides whether an inbound explanation was produced
// by this process. The test is a substring heuristic over markers this
// app embeds when it issues a tool call, not a security boundary: another
// session on the same account produces explanations without them.
type FingerprintMatcher struct {
	markers []string
}

// NewFingerprintMatcher creates a matcher over the given markers. An
// empty marker list falls back to the built-in set.
func NewFingerprintMatcher(markers []string) *FingerprintMatcher {
	if len(markers) == 0 {
		markers = domain.DefaultOriginMarkers()
	}
	return &FingerprintMatcher{markers: markers}
}

// IsFromOurApp reports whether explanation carries every origin marker.
// A nil explanation never matches.
func (m *FingerprintMatcher) IsFromOurApp(explanation *string) bool {
	if explanation == nil {
		return false
	}
	for _, marker := range m.markers {
		if !strings.Contains(*explanation, marker) {
			return false
		}
	}
	return true
}
