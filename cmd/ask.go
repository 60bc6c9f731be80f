package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/workmate/internal/chat"
)

var (
	askUser         string
	askConversation string
	askProject      string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a question from the terminal",
	Long: `Sends one message through the same context assembly and model gateway the
server uses. Pass --conversation to continue an existing conversation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		gw, err := createGateway(cfg, log)
		if err != nil {
			return err
		}

		ctx := context.Background()
		svc := chat.NewService(chat.NewStore(database), gw, nil, chatConfig(cfg), log)
		defer svc.Wait()

		res, err := svc.SendMessage(ctx, askUser, chat.SendRequest{
			ConversationID: askConversation,
			ProjectID:      askProject,
			Content:        strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		fmt.Println(res.AssistantMessage.Content)
		fmt.Fprintf(os.Stderr, "\nconversation %s (%d context messages, ~%d tokens)\n",
			res.Conversation.ID, res.ContextMessages, res.ContextTokens)
		if res.AssistantMessage.Metadata.Error {
			return fmt.Errorf("assistant request failed")
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "local", "user id the conversation belongs to")
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "continue this conversation id")
	askCmd.Flags().StringVar(&askProject, "project", "", "attach a new conversation to this project id")
	rootCmd.AddCommand(askCmd)
}
