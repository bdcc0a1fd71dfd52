package utils

import (
	"fmt"

	viper "github.com/spf13/viper"

	config "github.com/greenlight-dev/greenlight/config"
)

// WriteViperConfig materializes viper's merged state as a typed Config
// and writes it back to the file viper was loaded from. Writing the full
// typed config rather than viper's raw settings map keeps the file
// exhaustive: keys the user never touched land with their defaults, in a
// stable order.
func WriteViperConfig(v *viper.Viper) error {
	filename := v.ConfigFileUsed()
	if filename == "" {
		return fmt.Errorf("no config file is currently being used")
	}

	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg.SaveConfig(filename)
}
