package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sendConversation string

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send a single message and print the reply",
	Long: `Send one message through the conversation pipeline and print the
assistant's reply. Without --conversation the current conversation is
used; if none exists, a new one is created.

Examples:
  pagewright send "build me a landing page for a coffee shop"
  pagewright send "make the header sticky" --conversation 4f7c...`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendConversation, "conversation", "c", "", "conversation id (default: current)")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	r, err := getRouter(ctx)
	if err != nil {
		return err
	}

	conversationID := sendConversation
	if conversationID == "" {
		conversationID, err = convStore.CurrentID(ctx)
		if err != nil {
			return fmt.Errorf("resolve current conversation: %w", err)
		}
	}

	res, err := r.Submit(ctx, conversationID, args[0])
	if res == nil && err != nil {
		return err
	}

	fmt.Println(res.Text)
	printFileOperations(res)

	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("\n[conversation %s]\n", res.ConversationID)
	}
	return nil
}
