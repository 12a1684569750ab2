package cmd

import (
	"time"

	"github.com/sinsfetch/sinsfetch/internal/monitor"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
)

var (
	monPath     string
	monInterval time.Duration

	monFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "path",
			Usage:       "download root to watch",
			Value:       "./SINS",
			Destination: &monPath,
		},
		cli.DurationFlag{
			Name:        "interval, i",
			Usage:       "time between scans",
			Value:       DEF_MONITOR_TICK,
			Destination: &monInterval,
		},
	}
)

func monitorCmd(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	sctx, stop := signalContext()
	defer stop()
	return monitor.Run(sctx, afero.NewOsFs(), monPath, monInterval, stdout)
}
