package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "WISPr-Bandwidth-Max-Down", cfg.Radius.DownloadAttribute)
	assert.Equal(t, "WISPr-Bandwidth-Max-Up", cfg.Radius.UploadAttribute)
	assert.Equal(t, "==", cfg.Radius.Op)
	assert.Equal(t, 5, cfg.Billing.InvoiceAttempts)
	assert.Equal(t, time.Hour, cfg.Billing.OverdueInterval)
	assert.Equal(t, 30*time.Second, cfg.Dashboard.CacheTTL)
	assert.Equal(t, "isp.events", cfg.Kafka.Topic)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9999\"\nbilling:\n  invoice_attempts: 9\n"), 0o600))

	t.Setenv("ISPB_RADIUS_DOWNLOAD_ATTRIBUTE", "Mikrotik-Rate-Limit")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 9, cfg.Billing.InvoiceAttempts)
	assert.Equal(t, "Mikrotik-Rate-Limit", cfg.Radius.DownloadAttribute)
	assert.Equal(t, "WISPr-Bandwidth-Max-Up", cfg.Radius.UploadAttribute)
}
