package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/sinsfetch/sinsfetch/internal/config"
	"github.com/sinsfetch/sinsfetch/internal/executor"
	"github.com/sinsfetch/sinsfetch/internal/ledger"
	"github.com/sinsfetch/sinsfetch/internal/oracle"
	"github.com/sinsfetch/sinsfetch/internal/report"
	"github.com/sinsfetch/sinsfetch/internal/scheduler"
	"github.com/sinsfetch/sinsfetch/pkg/fetch"
	"github.com/sinsfetch/sinsfetch/pkg/logger"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
)

var (
	dlConfig        string
	dlRoot          string
	dlBaseURL       string
	dlNodes         string
	dlDryRun        bool
	dlMaxConcurrent int
	dlSleep         int
	dlPollInterval  time.Duration
	dlStallTimeout  time.Duration
	dlTransfer      string
	dlProxy         string
	dlRequireMarker bool
	dlFailExit      bool
	dlEvery         string
	dlProgress      bool
	dlLedger        string

	dlFlags = withLogFlags(
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "read settings from this YAML file",
			Destination: &dlConfig,
		},
		cli.StringFlag{
			Name:        "root, r",
			Usage:       "download root directory (default: ./SINS)",
			Destination: &dlRoot,
		},
		cli.StringFlag{
			Name:        "base-url",
			Usage:       "archive base url (default: " + catalog.DefaultBaseURL + ")",
			Destination: &dlBaseURL,
		},
		cli.StringFlag{
			Name:        "nodes, n",
			Usage:       "comma separated node ids to fetch (default: all)",
			Destination: &dlNodes,
		},
		cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "trace what would be fetched without touching the disk",
			Destination: &dlDryRun,
		},
		cli.IntFlag{
			Name:        "max-concurrent, m",
			Usage:       "maximum number of parallel transfers",
			Value:       scheduler.DefaultMaxConcurrent,
			Destination: &dlMaxConcurrent,
		},
		cli.IntFlag{
			Name:        "sleep, s",
			Usage:       "seconds between polls of running transfers",
			Destination: &dlSleep,
		},
		cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "time between polls of running transfers",
			Value:       scheduler.DefaultPollInterval,
			Destination: &dlPollInterval,
		},
		cli.DurationFlag{
			Name:        "stall-timeout",
			Usage:       "abort a transfer that made no progress for this long (0 disables)",
			Destination: &dlStallTimeout,
		},
		cli.StringFlag{
			Name:        "transfer, t",
			Usage:       "transfer backend: native or curl",
			Value:       config.TransferNative,
			Destination: &dlTransfer,
		},
		cli.StringFlag{
			Name:        "proxy, x",
			Usage:       "proxy url (http, https or socks5)",
			Destination: &dlProxy,
		},
		cli.BoolFlag{
			Name:        "require-marker",
			Usage:       "only trust files that carry a .complete marker",
			Destination: &dlRequireMarker,
		},
		cli.BoolFlag{
			Name:        "fail-exit",
			Usage:       "exit non-zero when any target failed",
			Destination: &dlFailExit,
		},
		cli.StringFlag{
			Name:        "every",
			Usage:       "repeat the download on this cron schedule",
			Destination: &dlEvery,
		},
		cli.BoolFlag{
			Name:        "progress, p",
			Usage:       "show progress bars for running transfers",
			Destination: &dlProgress,
		},
		cli.StringFlag{
			Name:        "ledger",
			Usage:       `run ledger database ("-" disables)`,
			Destination: &dlLedger,
		},
	)
)

// applyDownloadFlags overrides config fields whose flags were given
// explicitly and re-validates the result.
func applyDownloadFlags(ctx *cli.Context, cfg *config.Config) error {
	d := &cfg.Download
	if ctx.IsSet("root") {
		cfg.Root = dlRoot
	}
	if ctx.IsSet("base-url") {
		cfg.BaseURL = dlBaseURL
	}
	if ctx.IsSet("nodes") {
		d.Groups = catalog.ParseGroups(dlNodes)
	}
	if ctx.IsSet("dry-run") {
		d.DryRun = dlDryRun
	}
	if ctx.IsSet("max-concurrent") {
		d.MaxConcurrent = dlMaxConcurrent
	}
	if ctx.IsSet("poll-interval") {
		d.PollInterval = dlPollInterval
	}
	if ctx.IsSet("sleep") {
		d.PollInterval = time.Duration(dlSleep) * time.Second
	}
	if ctx.IsSet("stall-timeout") {
		d.StallTimeout = dlStallTimeout
	}
	if ctx.IsSet("transfer") {
		d.Transfer = dlTransfer
	}
	if ctx.IsSet("proxy") {
		d.Proxy = dlProxy
	}
	if ctx.IsSet("require-marker") {
		d.RequireMarker = dlRequireMarker
	}
	if ctx.IsSet("fail-exit") {
		d.FailExit = dlFailExit
	}
	if ctx.IsSet("every") {
		d.Every = dlEvery
	}
	if ctx.IsSet("progress") {
		d.Progress = dlProgress
	}
	if ctx.IsSet("ledger") {
		cfg.Ledger.Path = dlLedger
	}
	return cfg.Validate()
}

func download(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, err := loadConfig(dlConfig)
	if err != nil {
		return err
	}
	if err := applyDownloadFlags(ctx, cfg); err != nil {
		return err
	}
	l, err := newLogger()
	if err != nil {
		return err
	}
	defer l.Close()

	r, err := newRunner(cfg, afero.NewOsFs(), l, stdout)
	if err != nil {
		return err
	}
	defer r.close()

	sctx, stop := signalContext()
	defer stop()
	return r.run(sctx)
}

// runner executes download passes for one configuration.
type runner struct {
	cfg      *config.Config
	fs       afero.Fs
	log      logger.Logger
	out      io.Writer
	transfer fetch.Transfer
	ledger   *ledger.Ledger
}

func newRunner(cfg *config.Config, fs afero.Fs, l logger.Logger, out io.Writer) (*runner, error) {
	r := &runner{cfg: cfg, fs: fs, log: l, out: out}
	if !cfg.Download.DryRun {
		t, err := newTransfer(cfg, fs, l)
		if err != nil {
			return nil, err
		}
		r.transfer = t
	}
	if path := cfg.LedgerPath(); path != "" && !cfg.Download.DryRun {
		lg, err := ledger.Open(path, l)
		if err != nil {
			l.Warning("run ledger unavailable: %v", err)
		} else {
			r.ledger = lg
		}
	}
	return r, nil
}

func (r *runner) close() {
	if r.ledger != nil {
		if err := r.ledger.Close(); err != nil {
			r.log.Warning("closing run ledger: %v", err)
		}
	}
}

// newTransfer builds the configured transfer backend wrapped in retries.
func newTransfer(cfg *config.Config, fs afero.Fs, l logger.Logger) (fetch.Transfer, error) {
	d := cfg.Download
	var t fetch.Transfer
	switch d.Transfer {
	case config.TransferCurl:
		t = fetch.NewCommandTransfer(d.Proxy)
	default:
		client, err := fetch.NewHTTPClient(d.Proxy, DEF_CONNECT_TIMEOUT)
		if err != nil {
			return nil, err
		}
		t = fetch.NewRouter(fs, fetch.RouterOptions{
			Client:         client,
			SSHKeyPath:     d.SSHKey,
			KnownHostsPath: d.KnownHosts,
		})
	}
	return fetch.NewRetrying(t, fetch.RetryConfig{
		MaxRetries:    d.Retry.Attempts,
		BaseDelay:     d.Retry.BaseDelay,
		MaxDelay:      d.Retry.MaxDelay,
		JitterFactor:  fetch.DefJitterFactor,
		BackoffFactor: fetch.DefBackoffFactor,
	}, l), nil
}

// run executes one pass, or recurring passes when a cron schedule is set.
func (r *runner) run(ctx context.Context) error {
	if r.cfg.Download.Every == "" {
		sum, err := r.pass(ctx)
		return r.verdict(sum, err)
	}
	rec := &scheduler.Recurring{
		Expr: r.cfg.Download.Every,
		Log:  r.log,
		Pass: func(ctx context.Context) error {
			sum, err := r.pass(ctx)
			if err != nil {
				return err
			}
			if !sum.OK() {
				return fmt.Errorf("%d targets failed", len(sum.Failed))
			}
			return nil
		},
	}
	err := rec.Run(ctx)
	if errors.Is(err, context.Canceled) {
		r.log.Info("stopped")
		return nil
	}
	return err
}

// verdict maps a finished pass to the command result. Failed targets only
// fail the command when fail_exit is set.
func (r *runner) verdict(sum scheduler.Summary, err error) error {
	if errors.Is(err, context.Canceled) {
		r.log.Warning("interrupted: %d completed, %d failed", len(sum.Completed), len(sum.Failed))
		return nil
	}
	if err != nil {
		return err
	}
	if r.cfg.Download.FailExit && !sum.OK() {
		return fmt.Errorf("%d of %d targets failed", len(sum.Failed), sum.Total())
	}
	return nil
}

// pass builds the catalog and drives one scheduler run over it.
func (r *runner) pass(ctx context.Context) (scheduler.Summary, error) {
	d := r.cfg.Download
	targets, err := catalog.Build(r.fs, r.cfg.CatalogOptions())
	if err != nil {
		return scheduler.Summary{}, err
	}
	r.log.Debug("catalog: %d targets under %s", len(targets), r.cfg.Root)

	sinks := []report.Sink{report.NewConsole(r.log)}
	if r.ledger != nil {
		id, err := r.ledger.Begin(r.options())
		if err != nil {
			r.log.Warning("%v", err)
		} else {
			r.log.Debug("ledger: run %s", id)
			sinks = append(sinks, r.ledger)
			defer func() {
				if err := r.ledger.Finish(); err != nil {
					r.log.Warning("%v", err)
				}
			}()
		}
	}
	var bars *report.Bars
	if d.Progress && !d.DryRun {
		bars = report.NewBars(r.out)
		sinks = append(sinks, bars)
	}
	sink := report.Multi(sinks...)

	opts := executor.Options{
		DryRun:       d.DryRun,
		Transfer:     r.transfer,
		Fs:           r.fs,
		Marker:       d.RequireMarker,
		StallTimeout: d.StallTimeout,
		Sink:         sink,
		Log:          r.log,
	}
	if bars != nil {
		opts.Progress = bars.Track
	}
	s, err := scheduler.New(scheduler.Options{
		MaxConcurrent: d.MaxConcurrent,
		PollInterval:  d.PollInterval,
	}, oracle.New(r.fs, d.RequireMarker), executor.New(opts), sink, r.log)
	if err != nil {
		return scheduler.Summary{}, err
	}

	sum, err := s.Run(ctx, targets)
	if bars != nil {
		bars.Wait()
	}
	r.log.Info("finished: %d skipped, %d completed, %d failed (peak %d running)",
		len(sum.Skipped), len(sum.Completed), len(sum.Failed), sum.Peak)
	return sum, err
}

// options summarises the run settings for the ledger.
func (r *runner) options() string {
	d := r.cfg.Download
	groups := "all"
	if len(d.Groups) > 0 {
		groups = strings.Join(d.Groups, ",")
	}
	return fmt.Sprintf("groups=%s max_concurrent=%d poll_interval=%s transfer=%s",
		groups, d.MaxConcurrent, d.PollInterval, d.Transfer)
}
