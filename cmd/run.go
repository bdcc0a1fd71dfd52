package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/greenlight-dev/greenlight/config"
	bus "github.com/greenlight-dev/greenlight/internal/bus"
	container "github.com/greenlight-dev/greenlight/internal/container"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
	logger "github.com/greenlight-dev/greenlight/internal/logger"
	ui "github.com/greenlight-dev/greenlight/internal/ui"
	cobra "github.com/spf13/cobra"
)

const shutdownGrace = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the approval coordinator",
	Long: `Start the coordinator: connect the push channel, schedule the stale
call sweep, and route approval prompts as they arrive. The process runs
until interrupted; on shutdown every call still awaiting a decision is
rejected so no dispatch blocks forever.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromViper()
		if err != nil {
			return err
		}
		return runCoordinator(cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runCoordinator(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := container.NewServiceContainer(ctx, cfg, V)
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}

	events := services.GetEventBus().Subscribe("")
	defer services.GetEventBus().Unsubscribe(events)

	services.Start(ctx)

	fmt.Println(ui.FormatSuccess("Greenlight coordinator running"))
	fmt.Printf("  Gateway: %s\n", cfg.Gateway.URL)
	fmt.Printf("  Storage: %s\n", cfg.Storage.Type)
	fmt.Printf("  Sweep:   %s (calls older than %s are rejected)\n",
		cfg.Coordinator.SweepSchedule, cfg.Coordinator.CallTimeout())
	fmt.Println("Press Ctrl+C to stop.")

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return shutdownServices(services)
		case event, ok := <-events.Ch():
			if !ok {
				return shutdownServices(services)
			}
			renderEvent(event)
		}
	}
}

func shutdownServices(services *container.ServiceContainer) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := services.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown finished with errors", "error", err)
		return err
	}

	fmt.Println("Coordinator stopped.")
	return nil
}

// renderEvent prints one bus event in a single line. The run loop is the
// only subscriber in this process; richer surfaces subscribe to the same
// topics and render the same payloads their own way.
func renderEvent(event bus.Event) {
	switch payload := event.Payload.(type) {
	case domain.NavigateDirective:
		fmt.Printf("%s message %s opens the %s view\n",
			ui.FormatWarning("Approval needed:"), payload.MessageID, payload.Route)
	case domain.InlineApprovalEvent:
		fmt.Printf("%s %q (%s) shown in place\n",
			ui.FormatWarning("Approval needed:"), payload.Message.Title, payload.Message.ID)
	case domain.CallResolvedEvent:
		verdict := ui.FormatSuccess("approved")
		if !payload.Approved {
			verdict = ui.FormatErrorCLI("denied")
		}
		fmt.Printf("Call %s (%s) %s\n", payload.CallID, payload.ToolName, verdict)
	case domain.CallTimeoutEvent:
		fmt.Printf("%s call %s (%s) waited %s with no decision\n",
			ui.FormatWarning("Abandoned:"), payload.CallID, payload.ToolName, payload.Age.Round(time.Second))
	case domain.PushStateEvent:
		renderPushState(payload)
	case domain.ViewChangedEvent:
		logger.Debug("View changed", "route", payload.View.Route, "has_thread", payload.View.HasThread())
	}
}

func renderPushState(state domain.PushStateEvent) {
	if state.Connected {
		fmt.Println(ui.FormatSuccess("Push channel connected"))
		return
	}
	if state.Err != "" {
		fmt.Printf("%s %s (attempt %d)\n", ui.FormatWarning("Push channel down:"), state.Err, state.Attempt)
		return
	}
	fmt.Println(ui.FormatWarning("Push channel disconnected"))
}
