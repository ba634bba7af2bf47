package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	chatService "github.com/zhouzirui/mindcare/backend/internal/service/chat"
)

var chatUser string

// NewChatCmd creates the one-shot chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run one chat turn against the configured backends",
		Long: `Run a single chat turn for a local user and print the reply and mood.
The user is created on first use and the turn is persisted like any other.

Examples:
  mindcare chat --user asha "I feel so lonely"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.Auth.EnsureUser(cmd.Context(), chatUser, chatUser+"@local")
			if err != nil {
				return fmt.Errorf("resolving user: %w", err)
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			var observe chatService.StageObserver
			if verbose {
				observe = func(s chatService.State) {
					fmt.Fprintf(cmd.ErrOrStderr(), "stage: %s\n", s)
				}
			}

			res, err := a.Chat.SubmitTurn(cmd.Context(), u.ID, strings.Join(args, " "), observe)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bot: %s\n", res.Response)
			fmt.Fprintf(cmd.OutOrStdout(), "Mood: %s %s\n", res.Mood, res.Emoji)
			return nil
		},
	}

	cmd.Flags().StringVar(&chatUser, "user", "cli", "Local username the turn is recorded under")
	cmd.Flags().BoolP("verbose", "v", false, "Print pipeline stages to stderr")
	return cmd
}
