package services

import (
	"fmt"
	"sync"
	"time"

	viper "github.com/spf13/viper"

	config "github.com/greenlight-dev/greenlight/config"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
	utils "github.com/greenlight-dev/greenlight/internal/utils"
)

// ConfigService handles configuration access, mutation, and reloading.
// Reads and reloads may come from different goroutines: the cmd layer sets
// values while the run loop reads gateway settings.
type ConfigService struct {
	mutex  sync.RWMutex
	viper  *viper.Viper
	config *config.Config
}

var _ domain.ConfigService = (*ConfigService)(nil)

// NewConfigService creates a new config service
func NewConfigService(v *viper.Viper, cfg *config.Config) *ConfigService {
	return &ConfigService{
		viper:  v,
		config: cfg,
	}
}

// Reload reloads configuration from disk. Values absent from the file keep
// their defaults.
func (cs *ConfigService) Reload() (*config.Config, error) {
	if err := cs.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to re-read config file: %w", err)
	}

	newConfig := config.DefaultConfig()
	if err := cs.viper.Unmarshal(newConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reloaded config: %w", err)
	}

	cs.mutex.Lock()
	cs.config = newConfig
	cs.mutex.Unlock()

	return newConfig, nil
}

// GetConfig returns the current config
func (cs *ConfigService) GetConfig() *config.Config {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return cs.config
}

// SetValue sets a configuration value using dot notation and saves it to disk
func (cs *ConfigService) SetValue(key, value string) error {
	cs.viper.Set(key, value)

	if err := utils.WriteViperConfig(cs.viper); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if _, err := cs.Reload(); err != nil {
		return fmt.Errorf("failed to reload config after setting: %w", err)
	}

	return nil
}

// GetGatewayURL returns the execution service base URL
func (cs *ConfigService) GetGatewayURL() string {
	return cs.GetConfig().Gateway.URL
}

// GetAPIKey returns the execution service credential
func (cs *ConfigService) GetAPIKey() string {
	return cs.GetConfig().Gateway.APIKey
}

// GetTimeout returns the per-request gateway timeout in seconds
func (cs *ConfigService) GetTimeout() int {
	return cs.GetConfig().Gateway.Timeout
}

// GetPushURL returns the push channel endpoint override, if any
func (cs *ConfigService) GetPushURL() string {
	return cs.GetConfig().Gateway.PushURL
}

// GetApprovalTitles returns a copy of the approval-bearing title set
func (cs *ConfigService) GetApprovalTitles() []string {
	titles := cs.GetConfig().Coordinator.ApprovalTitles
	return append([]string(nil), titles...)
}

// GetOriginMarkers returns a copy of the fingerprint marker set
func (cs *ConfigService) GetOriginMarkers() []string {
	markers := cs.GetConfig().Coordinator.OriginMarkers
	return append([]string(nil), markers...)
}

// GetCallTimeout returns how long a pending call may wait before the sweep
// rejects it
func (cs *ConfigService) GetCallTimeout() time.Duration {
	return cs.GetConfig().Coordinator.CallTimeout()
}

// GetSweepSchedule returns the cron expression for the stale-call sweep
func (cs *ConfigService) GetSweepSchedule() string {
	return cs.GetConfig().Coordinator.SweepSchedule
}

// GetStorageType returns the configured message store backend
func (cs *ConfigService) GetStorageType() string {
	return cs.GetConfig().Storage.Type
}
