package domain

import "time"

// ConfigService provides configuration-related functionality to layers
// that must not depend on the config package directly
type ConfigService interface {
	// Gateway configuration
	GetGatewayURL() string
	GetAPIKey() string
	GetTimeout() int
	GetPushURL() string

	// Coordinator configuration
	GetApprovalTitles() []string
	GetOriginMarkers() []string
	GetCallTimeout() time.Duration
	GetSweepSchedule() string

	// Storage configuration
	GetStorageType() string
}
