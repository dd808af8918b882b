package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/disputedesk/internal/ports/primary"
	"github.com/example/disputedesk/internal/wire"
)

// EscalationCmd returns the escalation command
func EscalationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escalation",
		Short: "Work the admin escalation queue",
	}

	queue := &cobra.Command{
		Use:   "queue",
		Short: "List escalated issues nobody has claimed, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			_, err = wire.IssueAdapter().Queue(NewContext(), actor)
			return err
		},
	}

	claim := &cobra.Command{
		Use:   "claim [issue-id]",
		Short: "Claim an escalated issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			req := primary.IssueActionRequest{IssueID: args[0], ActorID: actor}
			_, err = wire.IssueAdapter().Transition(NewContext(), "claimed by "+actor, func(ctx context.Context) (*primary.Issue, error) {
				return wire.EscalationService().Claim(ctx, req)
			})
			return err
		},
	}

	cmd.AddCommand(queue, claim)
	return cmd
}
