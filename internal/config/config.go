// Package config loads sinsfetch settings from defaults, an optional YAML
// file and SINSFETCH_* environment variables, in that order of precedence.
package config

import (
	"time"

	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/sinsfetch/sinsfetch/internal/ledger"
	"github.com/sinsfetch/sinsfetch/internal/notify"
)

// EnvPrefix namespaces environment overrides, e.g. SINSFETCH_DOWNLOAD_MAX_CONCURRENT.
const EnvPrefix = "SINSFETCH"

const (
	TransferNative = "native"
	TransferCurl   = "curl"
)

// Config holds all application configuration.
type Config struct {
	Root     string        `mapstructure:"root" validate:"required"`
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
	Download Download      `mapstructure:"download"`
	Ledger   Ledger        `mapstructure:"ledger"`
	Email    notify.Config `mapstructure:"email" validate:"-"`
}

// Download configures the scheduler and its transfers.
type Download struct {
	DryRun        bool          `mapstructure:"dry_run"`
	Groups        []string      `mapstructure:"groups" validate:"dive,required"`
	MaxConcurrent int           `mapstructure:"max_concurrent" validate:"gte=1"`
	PollInterval  time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	StallTimeout  time.Duration `mapstructure:"stall_timeout" validate:"gte=0"`
	Transfer      string        `mapstructure:"transfer" validate:"oneof=native curl"`
	Proxy         string        `mapstructure:"proxy" validate:"omitempty,url"`
	RequireMarker bool          `mapstructure:"require_marker"`
	FailExit      bool          `mapstructure:"fail_exit"`
	// Every is a cron expression; empty runs a single pass.
	Every      string `mapstructure:"every"`
	Progress   bool   `mapstructure:"progress"`
	SSHKey     string `mapstructure:"ssh_key"`
	KnownHosts string `mapstructure:"known_hosts"`
	Retry      Retry  `mapstructure:"retry"`
}

// Retry bounds in-operation retries of transient transfer errors.
type Retry struct {
	Attempts  int           `mapstructure:"attempts" validate:"gte=0,lte=20"`
	BaseDelay time.Duration `mapstructure:"base_delay" validate:"gte=0"`
	MaxDelay  time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
}

// Ledger locates the run history database.
type Ledger struct {
	// Path defaults to {root}/.sinsfetch/ledger.db; "-" disables the ledger.
	Path string `mapstructure:"path"`
}

// LedgerPath returns the resolved ledger location, or "" when disabled.
func (c *Config) LedgerPath() string {
	switch c.Ledger.Path {
	case ledger.Disabled:
		return ""
	case "":
		return ledger.DefaultPath(c.Root)
	}
	return c.Ledger.Path
}

// CatalogOptions maps the configuration onto catalog.Build options.
func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{Root: c.Root, BaseURL: c.BaseURL, Groups: c.Download.Groups}
}
