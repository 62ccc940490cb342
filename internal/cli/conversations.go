package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pagewright/pagewright/internal/store"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
	Long: `Manage stored conversations.

Subcommands:
  list    List all conversations
  new     Start a new conversation and make it current
  switch  Make a conversation current
  delete  Delete a conversation
  clear   Delete all conversations

Examples:
  pagewright conversations list
  pagewright conversations new --title "Bakery site"
  pagewright conversations switch 4f7c...
  pagewright conversations delete 4f7c...`,
	RunE: runConversationsList,
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	RunE:  runConversationsList,
}

var conversationsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new conversation and make it current",
	RunE:  runConversationsNew,
}

var conversationsSwitchCmd = &cobra.Command{
	Use:   "switch <id>",
	Short: "Make a conversation current",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsSwitch,
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsDelete,
}

var conversationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all conversations",
	RunE:  runConversationsClear,
}

var (
	newTitle        string
	newSystemPrompt string
	clearYes        bool
)

func init() {
	conversationsNewCmd.Flags().StringVarP(&newTitle, "title", "t", "", "conversation title")
	conversationsNewCmd.Flags().StringVar(&newSystemPrompt, "system-prompt", "", "custom system prompt")
	conversationsClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip confirmation")

	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsNewCmd)
	conversationsCmd.AddCommand(conversationsSwitchCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	conversationsCmd.AddCommand(conversationsClearCmd)
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	conversations, err := convStore.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations yet. Run 'pagewright chat' to start one.")
		return nil
	}

	current, err := convStore.CurrentID(ctx)
	if err != nil {
		return fmt.Errorf("resolve current conversation: %w", err)
	}

	fmt.Printf("Conversations (%d):\n\n", len(conversations))
	for _, c := range conversations {
		marker := " "
		if c.ID == current {
			marker = "*"
		}
		fmt.Printf("%s %s  %s (%d messages, updated %s)\n",
			marker, c.ID, c.Title, len(c.Messages), c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runConversationsNew(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	title := newTitle
	if title == "" {
		title = "New conversation"
	}
	conv, err := convStore.CreateConversation(ctx, title, newSystemPrompt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	if err := convStore.SwitchConversation(ctx, conv.ID); err != nil {
		return fmt.Errorf("switch conversation: %w", err)
	}

	fmt.Printf("Created conversation %s\n", conv.ID)
	return nil
}

func runConversationsSwitch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := convStore.SwitchConversation(ctx, args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("conversation not found: %s", args[0])
		}
		return fmt.Errorf("switch conversation: %w", err)
	}

	fmt.Printf("Switched to conversation %s\n", args[0])
	return nil
}

func runConversationsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := convStore.DeleteConversation(ctx, args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("conversation not found: %s", args[0])
		}
		return fmt.Errorf("delete conversation: %w", err)
	}

	fmt.Printf("Deleted conversation %s\n", args[0])
	return nil
}

func runConversationsClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if !clearYes {
		fmt.Print("Delete ALL conversations? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := convStore.ClearConversations(ctx); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	fmt.Println("All conversations deleted.")
	return nil
}
