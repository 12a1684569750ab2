package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sinsfetch/sinsfetch/common"
	"github.com/sinsfetch/sinsfetch/internal/config"
	"github.com/sinsfetch/sinsfetch/pkg/logger"
	"github.com/urfave/cli"
)

var (
	debugMode bool
	logFile   string

	// swapped in tests
	stdout        io.Writer = os.Stdout
	signalContext           = func() (context.Context, context.CancelFunc) {
		return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
)

// withLogFlags appends the logging flags every command accepts.
func withLogFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.BoolFlag{
			Name:        "debug",
			Usage:       "print debug messages (also " + common.DebugEnv + "=1)",
			Destination: &debugMode,
		},
		cli.StringFlag{
			Name:        "log-file",
			Usage:       "append log lines to this file as well",
			EnvVar:      common.LogFileEnv,
			Destination: &logFile,
		},
	)
}

// fileLogger owns the log file it writes to.
type fileLogger struct {
	*logger.StandardLogger
	f *os.File
}

func (l *fileLogger) Close() error {
	return l.f.Close()
}

// newLogger builds the console logger, fanned out to --log-file when set.
func newLogger() (logger.Logger, error) {
	debug := debugMode || common.EnvBool(common.DebugEnv)
	console := logger.New(stdout, debug)
	if logFile == "" {
		return console, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open log file: %w", err)
	}
	fl := &fileLogger{StandardLogger: logger.NewStandardLogger(log.New(f, "", log.LstdFlags)), f: f}
	fl.SetDebug(debug)
	return logger.NewMultiLogger(console, fl), nil
}

// configPath prefers the flag value, then SINSFETCH_CONFIG.
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(common.ConfigEnv)
}

func loadConfig(path string) (*config.Config, error) {
	return config.Load(configPath(path))
}
