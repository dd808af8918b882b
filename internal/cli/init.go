package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/disputedesk/internal/config"
	"github.com/example/disputedesk/internal/db"
)

// demoDirectory matches the actors referenced by db.SeedFixtures.
var demoDirectory = []config.Actor{
	{ID: "CUST-001", Role: "customer", DisplayName: "Ada Lovelace"},
	{ID: "CUST-002", Role: "customer", DisplayName: "Alan Turing"},
	{ID: "SUPP-001", Role: "supplier", DisplayName: "Acme Homewares"},
	{ID: "ADM-001", Role: "admin", DisplayName: "Grace Hopper"},
	{ID: "ADM-002", Role: "admin", DisplayName: "Linus Torvalds"},
}

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the disputedesk config and database",
		Long: `Write .disputedesk/config.yaml (if missing) and create the SQLite schema.
With --seed, also load demo issues and a matching actor directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(globalConfigDir)
			if err != nil {
				return err
			}

			if _, err := os.Stat(config.Path(globalConfigDir)); errors.Is(err, fs.ErrNotExist) {
				if seed && len(cfg.Directory) == 0 {
					cfg.Directory = demoDirectory
				}
				if err := config.SaveConfig(globalConfigDir, cfg); err != nil {
					return err
				}
				fmt.Printf("✓ Config written to %s\n", config.Path(globalConfigDir))
			}

			if cfg.Store.Driver != config.DriverSQLite {
				fmt.Printf("Store driver is %s; nothing to initialize locally.\n", cfg.Store.Driver)
				return nil
			}

			dbPath := cfg.Store.DSN
			if dbPath == "" {
				if dbPath, err = db.GetDBPath(); err != nil {
					return fmt.Errorf("failed to get database path: %w", err)
				}
			}
			fmt.Printf("Initializing disputedesk database at %s\n", dbPath)

			conn, err := db.Open(dbPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Println("✓ Database initialized successfully")

			if seed {
				if err := db.SeedFixtures(conn); err != nil {
					return fmt.Errorf("failed to seed fixtures: %w", err)
				}
				fmt.Println("✓ Demo issues loaded")
			}

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  disputedesk issue list --as CUST-001")
			fmt.Println("  disputedesk escalation queue --as ADM-001")
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Load demo issues and actors")
	return cmd
}
