package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	container "github.com/greenlight-dev/greenlight/internal/container"
	domain "github.com/greenlight-dev/greenlight/internal/domain"
	ui "github.com/greenlight-dev/greenlight/internal/ui"
	cobra "github.com/spf13/cobra"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <tool-name>",
	Short: "Dispatch one tool invocation and wait for the decision",
	Long: `Send a single tool invocation through the approval flow. The command
connects the push channel, registers the call, forwards it to the
execution gateway, and blocks until a human approves or denies it, the
sweep abandons it, or the command is interrupted.

Examples:
  greenlight dispatch run_code --args '{"language":"python","source":"print(1)"}'
  greenlight dispatch delete_branch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolName := args[0]
		rawArgs, _ := cmd.Flags().GetString("args")

		var toolArgs map[string]any
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
				return fmt.Errorf("invalid --args JSON: %w", err)
			}
		}

		cfg, err := getConfigFromViper()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		services, err := container.NewServiceContainer(ctx, cfg, V)
		if err != nil {
			return fmt.Errorf("failed to build services: %w", err)
		}
		services.Start(ctx)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			_ = services.Shutdown(shutdownCtx)
		}()

		fmt.Printf("Dispatching %s, waiting for a decision...\n", toolName)

		result, err := services.GetDispatcher().Dispatch(ctx, toolName, toolArgs)
		if err != nil {
			return describeOutcome(toolName, err)
		}

		fmt.Println(ui.FormatSuccess("Approved"))
		if result != "" {
			fmt.Println(result)
		}
		return nil
	},
}

func init() {
	dispatchCmd.Flags().String("args", "", "Tool arguments as a JSON object")
	rootCmd.AddCommand(dispatchCmd)
}

// describeOutcome turns the dispatcher's typed errors into messages a
// terminal user can act on; anything unrecognized passes through.
func describeOutcome(toolName string, err error) error {
	var timeoutErr *domain.CallTimeoutError
	switch {
	case errors.Is(err, domain.ErrInvocationDenied):
		fmt.Println(ui.FormatErrorCLI("Denied"))
		return fmt.Errorf("invocation of %s was denied", toolName)
	case errors.As(err, &timeoutErr):
		fmt.Println(ui.FormatWarning("Abandoned"))
		return fmt.Errorf("nobody decided on %s within %s", toolName, timeoutErr.Age)
	case errors.Is(err, context.Canceled):
		fmt.Println(ui.FormatWarning("Interrupted"))
		return err
	default:
		return err
	}
}
