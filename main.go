package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sinsfetch/sinsfetch/cmd"
	"github.com/sinsfetch/sinsfetch/cmd/common"
)

var (
	version   string
	commit    string
	date      string
	buildType string = "unclassified"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

var osExit = os.Exit

func main() {
	osExit(runMain(os.Stderr, os.Args, func(args []string) error {
		return cmd.Execute(args, cmd.BuildArgs{
			Version:   version,
			Commit:    commit,
			Date:      date,
			BuildType: buildType,
		})
	}))
}

// runMain reports a failed command on w and picks the exit status: 2 for
// command lines that could not be parsed, 1 for anything else.
func runMain(w io.Writer, args []string, exec func([]string) error) int {
	err := exec(args)
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "sinsfetch: %s\n", err)
	var uerr *common.UsageError
	if errors.As(err, &uerr) {
		return exitUsage
	}
	return exitFailure
}
