package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "0.05", cfg.Pricing.TaxRate.String())
	assert.Equal(t, "500", cfg.Pricing.FreeDeliveryThreshold.String())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
service: storefront-test
http:
  addr: ":9090"
  shutdown_timeout: 3s
storage:
  driver: sqlite
  sqlite_path: /tmp/sf.db
auth:
  tokens:
    tok-asha: asha
  admins: [ops]
pricing:
  tax_rate: 0.18
  delivery_fee: "49.50"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "storefront-test", cfg.Service)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, map[string]string{"tok-asha": "asha"}, cfg.Auth.Tokens)
	assert.Equal(t, []string{"ops"}, cfg.Auth.Admins)
	assert.Equal(t, "0.18", cfg.Pricing.TaxRate.String())
	assert.Equal(t, "49.5", cfg.Pricing.DeliveryFee.String())
	// untouched keys keep their defaults
	assert.Equal(t, "500", cfg.Pricing.FreeDeliveryThreshold.String())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "http:\n  addr: \":9090\"\n")
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "storage:\n  driver: postgres\n"},
		{"sqlite without path", "storage:\n  driver: sqlite\n  sqlite_path: \"\"\n"},
		{"negative tax", "pricing:\n  tax_rate: -0.1\n"},
		{"zero shutdown timeout", "http:\n  shutdown_timeout: 0s\n"},
		{"malformed yaml", "http: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCartBounds(t *testing.T) {
	cfg, err := Load(writeConfig(t, "cart:\n  view_size: 50\n  signal_idle: 5m\n"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Cart.ViewSize)
	assert.Equal(t, 5*time.Minute, cfg.Cart.SignalIdle)
	assert.Equal(t, time.Minute, cfg.Cart.SweepInterval)

	_, err = Load(writeConfig(t, "cart:\n  view_size: 0\n"))
	assert.Error(t, err)
}
