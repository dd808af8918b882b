// Package cli provides CLI commands for the disputedesk application.
package cli

import (
	gocontext "context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/disputedesk/internal/config"
	"github.com/example/disputedesk/internal/obs"
	"github.com/example/disputedesk/internal/wire"
)

// Global flags, bound on the root command by RegisterGlobalFlags.
var (
	globalConfigDir string
	globalActorID   string
	globalVerbose   bool
)

// RegisterGlobalFlags adds --as, --dir and --verbose to the root command.
func RegisterGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&globalActorID, "as", "", "Acting party id (defaults to config 'actor')")
	root.PersistentFlags().StringVar(&globalConfigDir, "dir", ".", "Directory containing .disputedesk/config.yaml")
	root.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "Log at the configured level instead of warnings only")
}

// Bootstrap loads config and configures the service graph.
// Should be called once at CLI startup in PersistentPreRunE.
func Bootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(globalConfigDir)
	if err != nil {
		return err
	}
	if globalActorID == "" {
		globalActorID = cfg.Actor
	}

	// Commands other than serve talk to the terminal; keep the log quiet there.
	level := cfg.Log.Level
	if cmd.Name() != "serve" && !globalVerbose {
		level = "warn"
	}
	wire.Configure(cfg, obs.NewLogger(os.Stderr, level, cfg.Log.Format))
	return nil
}

// NewContext creates a context.Background() for a CLI invocation.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	return gocontext.Background()
}

// ActorID returns the acting party for this invocation.
func ActorID() (string, error) {
	if globalActorID == "" {
		return "", errors.New("no acting party: pass --as ACTOR-ID or set 'actor' in .disputedesk/config.yaml")
	}
	return globalActorID, nil
}

// Teardown releases whatever the command opened. Used as PersistentPostRun.
func Teardown(cmd *cobra.Command, args []string) {
	wire.Shutdown(NewContext())
}
