package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
	storage "github.com/greenlight-dev/greenlight/internal/infra/storage"
	cobra "github.com/spf13/cobra"
)

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Query persisted push messages",
	Long: `Inspect the messages the coordinator has persisted from the push
channel. Every inbound payload is stored before routing, so the records
here are the full history a detail view renders from.`,
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored messages, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withMessageStore(func(ctx context.Context, store domain.MessageStore) error {
			messages, err := store.ListMessages(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}

			if len(messages) == 0 {
				fmt.Println("No messages stored.")
				return nil
			}

			for _, msg := range messages {
				tool := ""
				if msg.ToolName != nil {
					tool = " tool=" + *msg.ToolName
				}
				fmt.Printf("%s  %-7s  %s%s\n", msg.ReceivedAt.Format(time.RFC3339), msg.Kind, msg.Title, tool)
				fmt.Printf("  id: %s\n", msg.ID)
			}
			return nil
		})
	},
}

var messagesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored message in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		return withMessageStore(func(ctx context.Context, store domain.MessageStore) error {
			msg, err := store.GetMessage(ctx, id)
			if errors.Is(err, domain.ErrMessageNotFound) {
				return fmt.Errorf("no message with id %s", id)
			}
			if err != nil {
				return fmt.Errorf("failed to load message: %w", err)
			}

			fmt.Printf("ID:       %s\n", msg.ID)
			fmt.Printf("Kind:     %s\n", msg.Kind)
			fmt.Printf("Title:    %s\n", msg.Title)
			fmt.Printf("Received: %s\n", msg.ReceivedAt.Format(time.RFC3339))
			if msg.ToolName != nil {
				fmt.Printf("Tool:     %s\n", *msg.ToolName)
			}
			if msg.ThreadID != nil {
				fmt.Printf("Thread:   %s\n", *msg.ThreadID)
			}
			if msg.ThreadTitle != nil {
				fmt.Printf("          %s\n", *msg.ThreadTitle)
			}
			if msg.Body != "" {
				fmt.Println()
				fmt.Println(msg.Body)
			}
			return nil
		})
	},
}

func init() {
	messagesListCmd.Flags().Int("limit", 20, "Maximum number of messages to list")

	messagesCmd.AddCommand(messagesListCmd)
	messagesCmd.AddCommand(messagesShowCmd)
	rootCmd.AddCommand(messagesCmd)
}

// withMessageStore opens the configured backend for the duration of one
// query. Commands read the same storage the run loop writes, so records
// are visible here as soon as the router persists them.
func withMessageStore(fn func(context.Context, domain.MessageStore) error) error {
	cfg, err := getConfigFromViper()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := storage.NewMessageStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open message store: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return fn(ctx, store)
}
