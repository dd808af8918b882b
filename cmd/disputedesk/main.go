package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/disputedesk/internal/adapters/cli"
	"github.com/example/disputedesk/internal/cli"
	"github.com/example/disputedesk/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "disputedesk",
		Short:   "disputedesk - order issue and dispute resolution",
		Version: version.String(),
		Long: `disputedesk tracks problems customers report with marketplace orders.
Suppliers offer resolutions, customers accept or decline them, and
platform admins work the escalation queue.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: cli.Bootstrap,
		PersistentPostRun: cli.Teardown,
	}
	cli.RegisterGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.IssueCmd())
	rootCmd.AddCommand(cli.MessageCmd())
	rootCmd.AddCommand(cli.EscalationCmd())
	rootCmd.AddCommand(cli.TokenCmd())

	// Server
	rootCmd.AddCommand(cli.ServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cliadapter.ErrorLine(err))
		os.Exit(1)
	}
}
