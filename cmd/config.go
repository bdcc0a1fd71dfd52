package cmd

import (
	"bytes"
	"fmt"
	"os"

	config "github.com/greenlight-dev/greenlight/config"
	services "github.com/greenlight-dev/greenlight/internal/services"
	ui "github.com/greenlight-dev/greenlight/internal/ui"
	cobra "github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage coordinator configuration",
	Long:  `Manage the Greenlight coordinator configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration the coordinator would run with: file values
merged over defaults, with environment overrides applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromViper()
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}

		fmt.Print(buf.String())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value using dot notation and persist it.

Examples:
  greenlight config set gateway.url https://gateway.example.com
  greenlight config set coordinator.call_timeout_ms 600000
  greenlight config set storage.type jsonl`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if V == nil {
			return fmt.Errorf("no configuration loaded")
		}

		cfg, err := getConfigFromViper()
		if err != nil {
			return err
		}

		configService := services.NewConfigService(V, cfg)
		if err := configService.SetValue(key, value); err != nil {
			return err
		}

		fmt.Printf("%s %s = %s\n", ui.FormatSuccess("Set"), key, value)
		fmt.Printf("Configuration saved to %s\n", V.ConfigFileUsed())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new project configuration",
	Long: `Initialize a new .greenlight/config.yaml configuration file in the
current directory. This creates a local project configuration with default
settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath

		if _, err := os.Stat(configPath); err == nil {
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			if !overwrite {
				return fmt.Errorf("configuration file %s already exists (use --overwrite to replace)", configPath)
			}
		}

		cfg := config.DefaultConfig()

		if err := cfg.SaveConfig(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}

		fmt.Printf("Successfully created %s\n", configPath)
		fmt.Println("You can now customize the configuration for this project.")

		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("overwrite", false, "Overwrite existing configuration file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
