package cmd

import (
	"fmt"
	"os"
	"strings"

	config "github.com/greenlight-dev/greenlight/config"
	logger "github.com/greenlight-dev/greenlight/internal/logger"
	cobra "github.com/spf13/cobra"
	viper "github.com/spf13/viper"
	yaml "gopkg.in/yaml.v3"
)

// V is the viper instance shared by every command. It is bound to the
// config file path so mutations written through it land in the same file
// the session loaded from.
var V *viper.Viper

var rootCmd = &cobra.Command{
	Use:   "greenlight",
	Short: "Approval-gated execution coordinator",
	Long: `Greenlight coordinates tool calls that must not run without a human
decision. It registers each pending call, dispatches the invocation to the
execution gateway, listens on the push channel for the approval or denial,
and abandons calls nobody answers.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Greenlight approval coordinator")
		fmt.Println("Use 'greenlight run' to start the coordinator or --help to see available commands.")
	},
}

func Execute() {
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath))
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	configPath, _ := rootCmd.PersistentFlags().GetString("config")

	if configPath == "" {
		configPath = config.DefaultConfigPath
	}

	V = viper.New()
	V.SetConfigFile(configPath)
	V.SetConfigType("yaml")
	V.SetEnvPrefix("GREENLIGHT")
	V.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	V.AutomaticEnv()

	seedViperDefaults(V)

	if _, err := os.Stat(configPath); err == nil {
		if err := V.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to read config from %s: %v\n", configPath, err)
			os.Exit(1)
		}
	}

	applyListEnvOverrides()

	cfg, err := getConfigFromViper()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(verbose, cfg.Logging.Dir)
}

// seedViperDefaults registers every config key with its built-in value.
// Viper only resolves environment overrides for keys it knows about, so
// without this a GREENLIGHT_* variable would be ignored whenever the
// config file omits its key.
func seedViperDefaults(v *viper.Viper) {
	raw, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return
	}

	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return
	}

	setDefaultsFromTree(v, "", tree)
}

func setDefaultsFromTree(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if child, ok := value.(map[string]any); ok {
			setDefaultsFromTree(v, fullKey, child)
			continue
		}
		v.SetDefault(fullKey, value)
	}
}

// applyListEnvOverrides parses list-valued environment variables into the
// shared viper instance. AutomaticEnv only surfaces them as flat strings,
// so comma or newline separated values are split here.
func applyListEnvOverrides() {
	listKeys := map[string]string{
		"GREENLIGHT_COORDINATOR_ORIGIN_MARKERS":  "coordinator.origin_markers",
		"GREENLIGHT_COORDINATOR_APPROVAL_TITLES": "coordinator.approval_titles",
	}

	for env, key := range listKeys {
		raw, ok := os.LookupEnv(env)
		if !ok || raw == "" {
			continue
		}
		if values := splitListEnv(raw); len(values) > 0 {
			V.Set(key, values)
		}
	}
}

func splitListEnv(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	var values []string
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

// getConfigFromViper unmarshals the current viper state over the defaults,
// so keys absent from both the file and the environment keep their
// built-in values.
func getConfigFromViper() (*config.Config, error) {
	cfg := config.DefaultConfig()

	if V == nil {
		return cfg, nil
	}

	if err := V.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
