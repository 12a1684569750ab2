package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sinsfetch/sinsfetch/internal/extract"
	"github.com/sinsfetch/sinsfetch/internal/notify"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
)

var (
	exTarget  string
	exOutDir  string
	exConfig  string
	exDryRun  bool
	exWorkers int

	exFlags = withLogFlags(
		cli.StringFlag{
			Name:        "target",
			Usage:       "directory searched for zip archives",
			Destination: &exTarget,
		},
		cli.StringFlag{
			Name:        "outdir, o",
			Usage:       "directory the archives are extracted into",
			Destination: &exOutDir,
		},
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "YAML file holding the email section",
			Destination: &exConfig,
		},
		cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "only send a test email",
			Destination: &exDryRun,
		},
		cli.IntFlag{
			Name:        "workers, w",
			Usage:       "archives extracted in parallel",
			Value:       extract.DefaultWorkers,
			Destination: &exWorkers,
		},
	)

	pwConfig string
	pwFlags  = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "YAML file holding the email section",
			Destination: &pwConfig,
		},
	}

	// swapped in tests
	newMailer = func(cfg notify.Config) (notify.Mailer, error) {
		return notify.NewSMTPMailer(cfg)
	}
	stdin    io.Reader = os.Stdin
	now                = time.Now
	osFs     afero.Fs  = afero.NewOsFs()
	errNoDir           = errors.New("--target and --outdir are required")
)

func extractCmd(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, err := loadConfig(exConfig)
	if err != nil {
		return err
	}
	// fail before extracting anything when mail cannot be sent
	mailer, err := newMailer(cfg.Email)
	if err != nil {
		return err
	}
	l, err := newLogger()
	if err != nil {
		return err
	}
	defer l.Close()

	if exDryRun {
		if err := mailer.Send(notify.DryRun(now())); err != nil {
			return err
		}
		l.Info("dry-run email sent to %s", cfg.Email.To)
		return nil
	}
	if exTarget == "" || exOutDir == "" {
		return errNoDir
	}

	sctx, stop := signalContext()
	defer stop()
	res, err := extract.Run(sctx, osFs, extract.Options{
		Target:  exTarget,
		OutDir:  exOutDir,
		Workers: exWorkers,
		Log:     l,
	})
	if err != nil {
		return err
	}
	l.Info("extracted %d of %d archives", len(res.Extracted), len(res.All))
	if len(res.Failed) > 0 {
		l.Warning("not extracted: %s", strings.Join(res.Failed, ", "))
	}
	if err := mailer.Send(notify.Compose(res, now())); err != nil {
		return err
	}
	l.Info("report sent to %s", cfg.Email.To)
	return nil
}

// setPassword stores the SMTP password read from stdin in the OS keyring.
func setPassword(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, err := loadConfig(pwConfig)
	if err != nil {
		return err
	}
	if cfg.Email.From == "" {
		return &notify.ConfigurationError{Fields: []notify.FieldError{{Field: "from", Reason: "is required"}}}
	}
	fmt.Fprintf(stdout, "SMTP password for %s: ", cfg.Email.From)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return errors.New("empty password")
	}
	if err := notify.StorePassword(cfg.Email.From, pw); err != nil {
		return fmt.Errorf("error: cannot store password: %w", err)
	}
	fmt.Fprintln(stdout, "stored")
	return nil
}
