package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pagewright/pagewright/internal/client"
	"github.com/pagewright/pagewright/internal/router"
)

var (
	chatConversation string
	chatRemote       string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session. Each message runs through the
conversation pipeline; generated files are written into the output
directory as they arrive.

Without --conversation the current conversation is resumed, or a new one
is started on the first message. With --remote the session talks to a
running pagewright-server instead of the local pipeline.

Commands inside the session:
  /new          start a new conversation
  /list         list conversations
  /switch <id>  continue another conversation
  /quit         leave the session`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "conversation id to resume")
	chatCmd.Flags().StringVar(&chatRemote, "remote", "", "server URL to chat against (e.g. ws://localhost:8473/ws)")
}

// turnFunc abstracts local vs remote submission for the REPL.
type turnFunc func(ctx context.Context, conversationID, text string) (*router.Result, error)

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var submit turnFunc
	if chatRemote != "" {
		remote := client.New(chatRemote)
		if err := remote.Connect(ctx); err != nil {
			return fmt.Errorf("connect to server: %w", err)
		}
		defer remote.Close()
		submit = func(ctx context.Context, conversationID, text string) (*router.Result, error) {
			res, err := remote.Submit(ctx, conversationID, text)
			if res == nil {
				return nil, err
			}
			return &router.Result{
				ConversationID: res.ConversationID,
				Text:           res.Text,
				FileOperations: res.FileOperations,
				StartPreview:   res.StartPreview,
				IsError:        res.IsError,
			}, err
		}
	} else {
		r, err := getRouter(ctx)
		if err != nil {
			return err
		}
		submit = r.Submit
	}

	conversationID := chatConversation
	if conversationID == "" && chatRemote == "" {
		var err error
		conversationID, err = convStore.CurrentID(ctx)
		if err != nil {
			return fmt.Errorf("resolve current conversation: %w", err)
		}
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("pagewright chat. /new starts over, /quit leaves.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Print("you> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			conversationID = ""
			fmt.Println("Starting a new conversation.")
			continue
		case line == "/list":
			if err := runConversationsList(cmd, nil); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			continue
		case strings.HasPrefix(line, "/switch "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/switch"))
			if chatRemote == "" {
				if err := convStore.SwitchConversation(ctx, id); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
					continue
				}
			}
			conversationID = id
			fmt.Printf("Continuing conversation %s\n", id)
			continue
		}

		var res *router.Result
		var err error
		if interactive {
			res, err = submitWithSpinner(ctx, submit, conversationID, line)
		} else {
			res, err = submit(ctx, conversationID, line)
		}
		if res == nil {
			if err != nil {
				exitWithError("%v", err)
			}
			continue
		}
		conversationID = res.ConversationID

		printReply(res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return scanner.Err()
}

func printReply(res *router.Result) {
	if res.IsError {
		fmt.Println(chatTheme.errorStyle().Render(res.Text))
	} else {
		fmt.Println(res.Text)
	}
	printFileOperations(res)
	if res.StartPreview {
		fmt.Println(chatTheme.hintStyle().Render("Generated files are ready to preview."))
	}
}

// printFileOperations summarizes the file operations of one turn.
func printFileOperations(res *router.Result) {
	for _, op := range res.FileOperations {
		fmt.Printf("  %s %s\n", op.Action, op.Path)
	}
}
