package cmd

import (
	"context"
	"fmt"
	"time"

	storage "github.com/greenlight-dev/greenlight/internal/infra/storage"
	ui "github.com/greenlight-dev/greenlight/internal/ui"
	cobra "github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check coordinator configuration and storage health",
	Long: `Display the current coordinator state including:
- Gateway and push channel endpoints
- Message store health and record count
- Stale call sweep schedule`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromViper()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Println("Gateway")
		fmt.Printf("  URL:      %s\n", cfg.Gateway.URL)
		fmt.Printf("  Push URL: %s\n", pushEndpoint(cfg.Gateway.URL, cfg.Gateway.PushURL))
		fmt.Printf("  Timeout:  %ds\n", cfg.Gateway.Timeout)
		if cfg.Gateway.APIKey == "" {
			fmt.Printf("  API key:  %s\n", ui.FormatWarning("not set"))
		} else {
			fmt.Println("  API key:  set")
		}

		fmt.Println("Coordinator")
		fmt.Printf("  Sweep schedule: %s\n", cfg.Coordinator.SweepSchedule)
		fmt.Printf("  Call timeout:   %s\n", cfg.Coordinator.CallTimeout())
		fmt.Printf("  Approval titles: %d configured\n", len(cfg.Coordinator.ApprovalTitles))

		telemetry := ui.FormatDisabled()
		if cfg.Telemetry.Enabled {
			telemetry = ui.FormatEnabled()
		}
		fmt.Printf("  Telemetry: %s\n", telemetry)

		reportStorage(cfg.Storage)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func pushEndpoint(gatewayURL, override string) string {
	if override != "" {
		return override
	}
	return gatewayURL + " (derived)"
}

// reportStorage opens the configured backend just long enough to probe it.
// An unreachable store is reported, not returned as an error; status should
// always print something.
func reportStorage(cfg storage.StorageConfig) {
	fmt.Println("Storage")
	fmt.Printf("  Backend: %s\n", cfg.Type)

	store, err := storage.NewMessageStore(cfg)
	if err != nil {
		fmt.Printf("  Health:  %s\n", ui.FormatErrorCLI(fmt.Sprintf("unavailable (%v)", err)))
		return
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Health(ctx); err != nil {
		fmt.Printf("  Health:  %s\n", ui.FormatErrorCLI(fmt.Sprintf("unhealthy (%v)", err)))
		return
	}
	fmt.Printf("  Health:  %s\n", ui.FormatSuccess("ok"))

	count, err := store.CountMessages(ctx)
	if err != nil {
		fmt.Printf("  Records: %s\n", ui.FormatWarning(fmt.Sprintf("unknown (%v)", err)))
		return
	}
	fmt.Printf("  Records: %d\n", count)
}
