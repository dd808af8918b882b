package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestBootstrap_ActorFromConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".disputedesk"), 0755); err != nil {
		t.Fatal(err)
	}
	body := "actor: SUPP-001\nstore:\n  driver: memory\n"
	if err := os.WriteFile(filepath.Join(dir, ".disputedesk", "config.yaml"), []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	globalConfigDir, globalActorID = dir, ""
	t.Cleanup(func() { globalConfigDir, globalActorID = ".", "" })

	if err := Bootstrap(&cobra.Command{Use: "list"}, nil); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	actor, err := ActorID()
	if err != nil {
		t.Fatalf("ActorID failed: %v", err)
	}
	if actor != "SUPP-001" {
		t.Errorf("expected SUPP-001, got %q", actor)
	}
}

func TestBootstrap_FlagWinsOverConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DISPUTEDESK_ACTOR", "CUST-001")
	t.Setenv("DISPUTEDESK_STORE_DRIVER", "memory")

	globalConfigDir, globalActorID = dir, "ADM-001"
	t.Cleanup(func() { globalConfigDir, globalActorID = ".", "" })

	if err := Bootstrap(&cobra.Command{Use: "queue"}, nil); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if actor, _ := ActorID(); actor != "ADM-001" {
		t.Errorf("expected ADM-001, got %q", actor)
	}
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	t.Setenv("DISPUTEDESK_STORE_DRIVER", "cassandra")
	globalConfigDir, globalActorID = t.TempDir(), ""
	t.Cleanup(func() { globalConfigDir, globalActorID = ".", "" })

	if err := Bootstrap(&cobra.Command{Use: "list"}, nil); err == nil {
		t.Fatal("expected error for unknown store driver")
	}
}

func TestActorID_Missing(t *testing.T) {
	globalActorID = ""
	if _, err := ActorID(); err == nil {
		t.Fatal("expected error when no actor is set")
	}
}

func TestIssueCmd_Subcommands(t *testing.T) {
	cmd := IssueCmd()
	want := []string{"open", "show", "list", "review", "offer", "accept", "decline", "escalate", "close"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
}
