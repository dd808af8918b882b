package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ports/primary"
	"github.com/example/disputedesk/internal/wire"
)

// IssueCmd returns the issue command
func IssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Open, inspect and resolve order issues",
	}
	cmd.AddCommand(issueOpenCmd())
	cmd.AddCommand(issueShowCmd())
	cmd.AddCommand(issueListCmd())
	cmd.AddCommand(issueActionCmd("review", "Begin supplier review", "moved to review",
		func(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
			return wire.IssueService().BeginReview(ctx, req)
		}))
	cmd.AddCommand(issueOfferCmd())
	cmd.AddCommand(issueActionCmd("accept", "Accept the offered resolution", "resolved",
		func(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
			return wire.IssueService().AcceptResolution(ctx, req)
		}))
	cmd.AddCommand(issueActionCmd("decline", "Decline the offered resolution", "returned to review",
		func(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
			return wire.IssueService().DeclineResolution(ctx, req)
		}))
	cmd.AddCommand(issueActionCmd("escalate", "Escalate to platform support", "escalated",
		func(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
			return wire.IssueService().Escalate(ctx, req)
		}))
	cmd.AddCommand(issueActionCmd("close", "Force-close the issue (admin)", "closed",
		func(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
			return wire.IssueService().ForceClose(ctx, req)
		}))
	return cmd
}

func issueOpenCmd() *cobra.Command {
	var req primary.OpenIssueRequest
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open an issue for an order (customer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			req.ActorID = actor
			_, err = wire.IssueAdapter().Open(NewContext(), req)
			return err
		},
	}
	cmd.Flags().StringVar(&req.OrderID, "order", "", "Order id (required)")
	cmd.Flags().StringVar(&req.SupplierID, "supplier", "", "Supplier id (required)")
	cmd.Flags().StringVar(&req.IssueType, "type", "", "damaged_item, wrong_item, missing_item, late_delivery, quality_issue or other")
	cmd.Flags().StringSliceVar(&req.AffectedItems, "item", nil, "Affected order line (repeatable)")
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "What went wrong")
	cmd.Flags().StringSliceVar(&req.Evidence, "evidence", nil, "Evidence reference (repeatable)")
	cmd.Flags().StringVar(&req.DesiredResolution, "wants", "", "Desired resolution type")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("supplier")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func issueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [issue-id]",
		Short: "Show an issue and its thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			_, err = wire.IssueAdapter().Show(NewContext(), args[0], actor)
			return err
		},
	}
}

func issueListCmd() *cobra.Command {
	var (
		filters   primary.IssueFilters
		escalated bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues visible to the acting party",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("escalated") {
				filters.Escalated = &escalated
			}
			_, err = wire.IssueAdapter().List(NewContext(), actor, filters)
			return err
		},
	}
	cmd.Flags().StringVarP(&filters.Status, "status", "s", "", "Filter by status")
	cmd.Flags().StringVar(&filters.CustomerID, "customer", "", "Filter by customer (admins)")
	cmd.Flags().StringVar(&filters.SupplierID, "supplier", "", "Filter by supplier (admins)")
	cmd.Flags().BoolVar(&escalated, "escalated", false, "Only escalated (or with =false, only non-escalated) issues")
	cmd.Flags().IntVar(&filters.Limit, "limit", 0, "Maximum number of issues")
	return cmd
}

func issueOfferCmd() *cobra.Command {
	var resolutionType, amount, currency string
	cmd := &cobra.Command{
		Use:   "offer [issue-id]",
		Short: "Offer a resolution to the customer (supplier or admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			req := primary.OfferResolutionRequest{IssueID: args[0], ActorID: actor, ResolutionType: resolutionType}
			if amount != "" {
				m, err := issue.ParseMoney(amount, currency)
				if err != nil {
					return err
				}
				req.Amount = &primary.Money{Currency: m.Currency, AmountMinor: m.Amount}
			}
			_, err = wire.IssueAdapter().Transition(NewContext(), "offered "+resolutionType, func(ctx context.Context) (*primary.Issue, error) {
				return wire.IssueService().OfferResolution(ctx, req)
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&resolutionType, "type", "t", "", "full_refund, partial_refund, replacement, credit or no_action")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount such as 15.00 (partial_refund and credit)")
	cmd.Flags().StringVar(&currency, "currency", "USD", "ISO currency code for --amount")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// issueActionCmd builds a command for a body-less transition on one issue.
func issueActionCmd(use, short, verb string, op func(context.Context, primary.IssueActionRequest) (*primary.Issue, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [issue-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			req := primary.IssueActionRequest{IssueID: args[0], ActorID: actor}
			_, err = wire.IssueAdapter().Transition(NewContext(), verb, func(ctx context.Context) (*primary.Issue, error) {
				return op(ctx, req)
			})
			return err
		},
	}
}
