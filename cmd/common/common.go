// Package common holds the help, version and usage-error plumbing shared by
// the sinsfetch commands, plus the cell helper behind their tables.
package common

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli"
)

var (
	// VersionCmdStr is printed by the version command. Execute fills it
	// from the build arguments.
	VersionCmdStr string

	// Out receives help, version and usage-error text.
	Out io.Writer = os.Stdout

	showAppHelp     = cli.ShowAppHelp
	showCommandHelp = cli.ShowCommandHelp
)

// UsageError is a command line sinsfetch could not parse. The matching help
// text has already been written to Out when it is returned.
type UsageError struct {
	Command string
	Err     error
}

func (e *UsageError) Error() string {
	if e.Command == "" {
		return e.Err.Error()
	}
	return e.Command + ": " + e.Err.Error()
}

func (e *UsageError) Unwrap() error { return e.Err }

// Help shows the application help, or the help of the command named by the
// first argument.
func Help(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg == "" || arg == "help" {
		fmt.Fprintf(Out, "%s %s\n", ctx.App.Name, ctx.App.Version)
		return showAppHelp(ctx)
	}
	if err := showCommandHelp(ctx, arg); err != nil {
		// cli reports unknown topics as an ExitCoder, which would exit the
		// process from inside app.Run.
		return fmt.Errorf("no help topic for %q", arg)
	}
	return nil
}

func GetVersion(*cli.Context) error {
	fmt.Fprintln(Out, VersionCmdStr)
	return nil
}

// UsageErrorCallback is the OnUsageError hook of the app and every command.
// -h and -v/--version are honoured even though the app hides those flags;
// any other parse error prints the relevant help and becomes a *UsageError.
func UsageErrorCallback(ctx *cli.Context, err error, _ bool) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, flag.ErrHelp) {
		return showHelpFor(ctx)
	}
	if isVersionFlag(err) {
		return GetVersion(ctx)
	}
	fmt.Fprintf(Out, "%s: %s\n\n", ctx.App.HelpName, err)
	if herr := showHelpFor(ctx); herr != nil {
		fmt.Fprintln(Out, herr)
	}
	return &UsageError{Command: ctx.Command.Name, Err: err}
}

func showHelpFor(ctx *cli.Context) error {
	if ctx.Command.Name != "" {
		return showCommandHelp(ctx, ctx.Command.Name)
	}
	return showAppHelp(ctx)
}

const undefinedFlag = "flag provided but not defined: "

// isVersionFlag reports whether err is the flag package rejecting -v or
// --version. The flag package prints every name with a single dash.
func isVersionFlag(err error) bool {
	msg := err.Error()
	if !strings.HasPrefix(msg, undefinedFlag) {
		return false
	}
	switch strings.TrimPrefix(msg, undefinedFlag) {
	case "-v", "-version":
		return true
	}
	return false
}

// Beaut centres s in a cell n columns wide, the extra column of odd padding
// going to the right. Text wider than the cell is cut and ends in "~".
func Beaut(s string, n int) string {
	if n <= 0 {
		return ""
	}
	w := runewidth.StringWidth(s)
	if w > n {
		return runewidth.FillRight(runewidth.Truncate(s, n, "~"), n)
	}
	left := (n - w) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", n-w-left)
}
