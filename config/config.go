package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/greenlight-dev/greenlight/internal/domain"
	"github.com/greenlight-dev/greenlight/internal/infra/storage"
	"github.com/greenlight-dev/greenlight/internal/logger"
	"github.com/greenlight-dev/greenlight/internal/otel"
	"gopkg.in/yaml.v3"
)

const (
	ConfigDirName     = ".greenlight"
	ConfigFileName    = "config.yaml"
	GitignoreFileName = ".gitignore"
	DefaultConfigPath = ConfigDirName + "/" + ConfigFileName

	DefaultStorageDbPath    = ConfigDirName + "/messages.db"
	DefaultStorageJsonlPath = ConfigDirName + "/messages.jsonl"
)

// Config represents the coordinator configuration
type Config struct {
	Gateway     GatewayConfig         `yaml:"gateway" mapstructure:"gateway"`
	Coordinator CoordinatorConfig     `yaml:"coordinator" mapstructure:"coordinator"`
	Storage     storage.StorageConfig `yaml:"storage" mapstructure:"storage"`
	Logging     LoggingConfig         `yaml:"logging" mapstructure:"logging"`
	Telemetry   otel.Config           `yaml:"telemetry" mapstructure:"telemetry"`
}

// GatewayConfig contains connection settings for the execution service
type GatewayConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Timeout bounds dispatch requests, in seconds
	Timeout int `yaml:"timeout" mapstructure:"timeout"`
	// PushURL overrides the websocket endpoint derived from URL
	PushURL string `yaml:"push_url,omitempty" mapstructure:"push_url"`
}

// CoordinatorConfig contains approval coordination settings
type CoordinatorConfig struct {
	// CallTimeoutMs is the age in milliseconds past which a pending
	// call is rejected by the stale sweep
	CallTimeoutMs int `yaml:"call_timeout_ms" mapstructure:"call_timeout_ms"`
	// SweepSchedule is the cron expression driving the stale sweep
	SweepSchedule string `yaml:"sweep_schedule" mapstructure:"sweep_schedule"`
	// OriginMarkers are the substrings an explanation must all contain
	// to count as one of ours
	OriginMarkers []string `yaml:"origin_markers" mapstructure:"origin_markers"`
	// ApprovalTitles are the message titles treated as approval-bearing
	ApprovalTitles []string `yaml:"approval_titles" mapstructure:"approval_titles"`
}

// CallTimeout returns the stale call threshold as a duration
func (c CoordinatorConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMs) * time.Millisecond
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	// Dir is where greenlight.log is written; empty logs to stderr
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL:     "http://localhost:8080",
			APIKey:  "",
			Timeout: 30,
		},
		Coordinator: CoordinatorConfig{
			CallTimeoutMs:  900000, // 15 minutes
			SweepSchedule:  "* * * * *",
			OriginMarkers:  domain.DefaultOriginMarkers(),
			ApprovalTitles: domain.DefaultApprovalTitles(),
		},
		Storage: storage.StorageConfig{
			Type: "sqlite",
			SQLite: storage.SQLiteConfig{
				Path: DefaultStorageDbPath,
			},
			Postgres: storage.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "greenlight",
				SSLMode:  "disable",
			},
			Redis: storage.RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
			Jsonl: storage.JsonlConfig{
				Path: DefaultStorageJsonlPath,
			},
		},
		Logging: LoggingConfig{
			Dir: ConfigDirName,
		},
		Telemetry: otel.Config{
			Enabled:     false,
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "greenlight",
			SampleRate:  1.0,
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
		logger.Debug("Using default config path", "path", configPath)
	} else {
		logger.Debug("Using custom config path", "path", configPath)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Debug("Config file not found, using default configuration", "path", configPath)
		return DefaultConfig(), nil
	}

	logger.Debug("Loading config file", "path", configPath)
	data, err := os.ReadFile(configPath)
	if err != nil {
		logger.Error("Failed to read config file", "path", configPath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		logger.Error("Failed to parse config file", "path", configPath, "error", err)
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	logger.Debug("Successfully loaded config", "path", configPath, "gateway_url", config.Gateway.URL)
	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	if configPath == "" {
		configPath = getDefaultConfigPath()
		logger.Debug("Using default config path for save", "path", configPath)
	} else {
		logger.Debug("Using custom config path for save", "path", configPath)
	}

	dir := filepath.Dir(configPath)
	logger.Debug("Creating config directory", "dir", dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("Failed to create config directory", "dir", dir, "error", err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	defer func() {
		if err := encoder.Close(); err != nil {
			logger.Error("Failed to close YAML encoder", "error", err)
		}
	}()

	if err := encoder.Encode(c); err != nil {
		logger.Error("Failed to marshal config", "error", err)
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	data := buf.Bytes()

	logger.Debug("Writing config file", "path", configPath, "size", len(data))
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		logger.Error("Failed to write config file", "path", configPath, "error", err)
		return fmt.Errorf("failed to write config file: %w", err)
	}

	logger.Debug("Successfully saved config", "path", configPath)
	return nil
}

func getDefaultConfigPath() string {
	wd, err := os.Getwd()
	if err != nil {
		return DefaultConfigPath
	}
	return filepath.Join(wd, DefaultConfigPath)
}
