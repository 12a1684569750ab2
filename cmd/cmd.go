package cmd

import (
	"fmt"
	"runtime"

	"github.com/sinsfetch/sinsfetch/cmd/common"
	"github.com/urfave/cli"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

func Execute(args []string, bArgs BuildArgs) error {
	app := cli.App{
		Name:                  "sinsfetch",
		HelpName:              "sinsfetch",
		Usage:                 "Fetch, extract and verify the SINS dataset.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "sinsfetch <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Writer:                stdout,
		Commands: []cli.Command{
			{
				Name:                   "download",
				Aliases:                []string{"d"},
				Usage:                  "download the selected nodes",
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 download,
				Flags:                  dlFlags,
				UseShortOptionHandling: true,
				Description:            DownloadDescription,
			},
			{
				Name:               "groups",
				Aliases:            []string{"g"},
				Usage:              "list the node registry",
				Action:             groups,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        GroupsDescription,
			},
			{
				Name:               "monitor",
				Aliases:            []string{"m"},
				Usage:              "watch download progress on disk",
				Action:             monitorCmd,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        MonitorDescription,
				Flags:              monFlags,
			},
			{
				Name:               "extract",
				Aliases:            []string{"x"},
				Usage:              "extract, verify and report downloaded archives",
				Action:             extractCmd,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ExtractDescription,
				Flags:              exFlags,
			},
			{
				Name:               "set-password",
				Usage:              "store the SMTP password in the OS keyring",
				Action:             setPassword,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        PasswordDescription,
				Flags:              pwFlags,
			},
			{
				Name:               "history",
				Usage:              "show previous download runs",
				Action:             history,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        HistoryDescription,
				Flags:              histFlags,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of sinsfetch",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:                 download,
		Flags:                  dlFlags,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	common.Out = stdout
	return app.Run(args)
}
