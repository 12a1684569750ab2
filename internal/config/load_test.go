package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sinsfetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// TestLoadDefaults verifies the values used when neither a file nor the
// environment sets anything.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err, "Load() should succeed with defaults only")

	assert.Equal(t, "./SINS", cfg.Root)
	assert.Equal(t, "https://zenodo.org", cfg.BaseURL)
	assert.Equal(t, 5, cfg.Download.MaxConcurrent)
	assert.Equal(t, 3*time.Second, cfg.Download.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.Download.StallTimeout)
	assert.Equal(t, TransferNative, cfg.Download.Transfer)
	assert.Empty(t, cfg.Download.Groups)
	assert.False(t, cfg.Download.DryRun)
	assert.False(t, cfg.Download.FailExit)
	assert.Equal(t, 3, cfg.Download.Retry.Attempts)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, filepath.Join("./SINS", ".sinsfetch", "ledger.db"), cfg.LedgerPath())
}

// TestLoadFromFile verifies that YAML values override the defaults.
func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
root: /data/sins
download:
  groups: ["1", "10"]
  max_concurrent: 2
  poll_interval: 500ms
  stall_timeout: 2m
  transfer: curl
  require_marker: true
  every: "0 3 * * *"
  retry:
    attempts: 0
ledger:
  path: "-"
email:
  from: lab@example.org
  to: team@example.org
  smtp_host: smtp.example.org
  smtp_port: 465
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/sins", cfg.Root)
	assert.Equal(t, []string{"1", "10"}, cfg.Download.Groups)
	assert.Equal(t, 2, cfg.Download.MaxConcurrent)
	assert.Equal(t, 500*time.Millisecond, cfg.Download.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Download.StallTimeout)
	assert.Equal(t, TransferCurl, cfg.Download.Transfer)
	assert.True(t, cfg.Download.RequireMarker)
	assert.Equal(t, "0 3 * * *", cfg.Download.Every)
	assert.Equal(t, 0, cfg.Download.Retry.Attempts)
	assert.Empty(t, cfg.LedgerPath(), "ledger should be disabled")
	assert.Equal(t, "lab@example.org", cfg.Email.From)
	assert.Equal(t, 465, cfg.Email.SMTPPort)

	opts := cfg.CatalogOptions()
	assert.Equal(t, "/data/sins", opts.Root)
	assert.Equal(t, []string{"1", "10"}, opts.Groups)
}

// TestLoadFromEnv verifies that SINSFETCH_* variables take precedence over
// the file.
func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "download:\n  max_concurrent: 2\n")
	t.Setenv("SINSFETCH_DOWNLOAD_MAX_CONCURRENT", "7")
	t.Setenv("SINSFETCH_DOWNLOAD_GROUPS", "3,4")
	t.Setenv("SINSFETCH_ROOT", "/env/root")
	t.Setenv("SINSFETCH_EMAIL_PASSWORD", "hunter2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Download.MaxConcurrent)
	assert.Equal(t, []string{"3", "4"}, cfg.Download.Groups)
	assert.Equal(t, "/env/root", cfg.Root)
	assert.Equal(t, "hunter2", cfg.Email.Password)
}

// TestLoadLargeConcurrency verifies that any positive pool size is accepted.
func TestLoadLargeConcurrency(t *testing.T) {
	for _, n := range []int{1, 65, 500} {
		cfg, err := Load(writeConfig(t, fmt.Sprintf("download:\n  max_concurrent: %d\n", n)))
		require.NoError(t, err)
		assert.Equal(t, n, cfg.Download.MaxConcurrent)
	}
}

// TestLoadValidationErrors verifies that every invalid field is reported.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name  string
		body  string
		field string
	}{
		{"zero concurrency", "download:\n  max_concurrent: 0\n", "download.max_concurrent"},
		{"negative concurrency", "download:\n  max_concurrent: -3\n", "download.max_concurrent"},
		{"bad transfer", "download:\n  transfer: wget\n", "download.transfer"},
		{"bad base url", "base_url: not a url\n", "base_url"},
		{"unknown group", "download:\n  groups: [\"5\"]\n", "download.groups"},
		{"bad cron", "download:\n  every: \"every day\"\n", "download.every"},
		{"zero poll", "download:\n  poll_interval: 0s\n", "download.poll_interval"},
		{"retry window", "download:\n  retry:\n    base_delay: 10s\n    max_delay: 1s\n", "download.retry.max_delay"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			fields := make([]string, 0, len(verrs))
			for _, e := range verrs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tc.field)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLedgerPathExplicit(t *testing.T) {
	cfg := &Config{Root: "/r", Ledger: Ledger{Path: "/tmp/l.db"}}
	assert.Equal(t, "/tmp/l.db", cfg.LedgerPath())
}
