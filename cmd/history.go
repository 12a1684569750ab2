package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sinsfetch/sinsfetch/cmd/common"
	"github.com/sinsfetch/sinsfetch/internal/ledger"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

var (
	histConfig string
	histRoot   string
	histLedger string
	histLimit  int
	histRun    string
	histFormat string

	histFlags = withLogFlags(
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "read settings from this YAML file",
			Destination: &histConfig,
		},
		cli.StringFlag{
			Name:        "root, r",
			Usage:       "download root whose ledger is shown",
			Destination: &histRoot,
		},
		cli.StringFlag{
			Name:        "ledger",
			Usage:       "run ledger database",
			Destination: &histLedger,
		},
		cli.IntFlag{
			Name:        "limit, l",
			Usage:       "number of runs listed",
			Value:       DEF_HISTORY_LIMIT,
			Destination: &histLimit,
		},
		cli.StringFlag{
			Name:        "run",
			Usage:       "show the events of this run",
			Destination: &histRun,
		},
		cli.StringFlag{
			Name:        "format, f",
			Usage:       "output format: table or yaml",
			Value:       "table",
			Destination: &histFormat,
		},
	)

	errLedgerDisabled = errors.New("run ledger is disabled")
)

func history(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if histFormat != "table" && histFormat != "yaml" {
		return fmt.Errorf("unknown format %q", histFormat)
	}
	cfg, err := loadConfig(histConfig)
	if err != nil {
		return err
	}
	if ctx.IsSet("root") {
		cfg.Root = histRoot
	}
	if ctx.IsSet("ledger") {
		cfg.Ledger.Path = histLedger
	}
	path := cfg.LedgerPath()
	if path == "" {
		return errLedgerDisabled
	}
	l, err := newLogger()
	if err != nil {
		return err
	}
	defer l.Close()

	lg, err := ledger.Open(path, l)
	if err != nil {
		return err
	}
	defer lg.Close()

	if histRun != "" {
		entries, err := lg.Events(histRun)
		if err != nil {
			return err
		}
		if histFormat == "yaml" {
			return writeYAML(stdout, entries)
		}
		fmt.Fprint(stdout, eventsTable(entries))
		return nil
	}
	runs, err := lg.Runs(histLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs recorded in", path)
		return nil
	}
	if histFormat == "yaml" {
		return writeYAML(stdout, runs)
	}
	fmt.Fprint(stdout, runsTable(runs))
	return nil
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func runsTable(runs []ledger.Run) string {
	txt := "------------------------------------------------------------------------------------\n"
	txt += fmt.Sprintf("|%s|%s|%s|%s|%s|%s\n",
		common.Beaut("Run", 38), common.Beaut("Started", 21),
		common.Beaut("Skip", 6), common.Beaut("Done", 6), common.Beaut("Fail", 6), "")
	for _, r := range runs {
		txt += fmt.Sprintf("|%s|%s|%s|%s|%s|%s\n",
			common.Beaut(r.ID, 38),
			common.Beaut(r.Started.Format(time.DateTime), 21),
			common.Beaut(strconv.Itoa(r.Skipped), 6),
			common.Beaut(strconv.Itoa(r.Completed), 6),
			common.Beaut(strconv.Itoa(r.Failed), 6),
			runState(r),
		)
	}
	txt += "------------------------------------------------------------------------------------\n"
	return txt
}

func runState(r ledger.Run) string {
	if r.Finished.IsZero() {
		return " unfinished"
	}
	return ""
}

func eventsTable(entries []ledger.Entry) string {
	txt := ""
	for _, e := range entries {
		line := fmt.Sprintf("%4d %s %-5s %s", e.Seq, e.At.Format(time.DateTime), e.Kind, e.Path)
		if e.Code != 0 {
			line += fmt.Sprintf(" (exit %d)", e.Code)
		}
		if e.Message != "" {
			line += ": " + e.Message
		}
		txt += line + "\n"
	}
	return txt
}
