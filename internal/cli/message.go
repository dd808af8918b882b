package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/disputedesk/internal/ports/primary"
	"github.com/example/disputedesk/internal/wire"
)

// MessageCmd returns the message command
func MessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Post to and read issue threads",
	}

	var attachments []string
	add := &cobra.Command{
		Use:   "add [issue-id] [text]",
		Short: "Add a message to an issue thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			_, err = wire.IssueAdapter().AddMessage(NewContext(), primary.AddMessageRequest{
				IssueID:     args[0],
				ActorID:     actor,
				Text:        args[1],
				Attachments: attachments,
			})
			return err
		},
	}
	add.Flags().StringSliceVarP(&attachments, "attach", "a", nil, "Attachment reference (repeatable)")

	list := &cobra.Command{
		Use:   "list [issue-id]",
		Short: "List an issue's messages, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			_, err = wire.IssueAdapter().ListMessages(NewContext(), args[0], actor)
			return err
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
