package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".disputedesk"), 0755))
	require.NoError(t, os.WriteFile(Path(dir), []byte(body), 0600))
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":9090", cfg.GRPC.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 20, cfg.Rate.Burst)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadConfig_FileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
actor: CUST-001
store:
  driver: Memory
http:
  addr: 127.0.0.1:9000
auth:
  secret: s3cret
  token_ttl: 90m
directory:
  - id: CUST-001
    role: customer
    display_name: Ada
  - id: ADM-001
    role: admin
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "CUST-001", cfg.Actor)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	require.Len(t, cfg.Directory, 2)
	assert.Equal(t, Actor{ID: "CUST-001", Role: "customer", DisplayName: "Ada"}, cfg.Directory[0])
	assert.Equal(t, "ADM-001", cfg.Directory[1].ID)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "store:\n  driver: memory\nrate:\n  burst: 5\n")
	t.Setenv("DISPUTEDESK_RATE_BURST", "50")
	t.Setenv("DISPUTEDESK_NOTIFY_WEBHOOK_URL", "http://hooks.local/x")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Rate.Burst)
	assert.Equal(t, "http://hooks.local/x", cfg.Notify.WebhookURL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown driver", "store:\n  driver: mongo\n", "unknown store.driver"},
		{"postgres needs dsn", "store:\n  driver: postgres\n", "store.dsn is required"},
		{"zero burst", "rate:\n  burst: 0\n", "must be positive"},
		{"bad role", "directory:\n  - id: X-1\n    role: auditor\n", "unknown role"},
		{"missing id", "directory:\n  - role: admin\n", "has no id"},
		{"duplicate id", "directory:\n  - id: A\n    role: admin\n  - id: A\n    role: customer\n", "listed twice"},
		{"malformed yaml", "store: [\n", "failed to read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)
			_, err := LoadConfig(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveConfig_ThenLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Store.Driver = DriverMemory
	cfg.Directory = []Actor{{ID: "SUPP-001", Role: "supplier", DisplayName: "Acme"}}

	require.NoError(t, SaveConfig(dir, cfg))

	info, err := os.Stat(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
