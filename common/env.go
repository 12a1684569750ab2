// Package common holds the environment variable names shared by the
// sinsfetch commands.
package common

import (
	"os"
	"strconv"
)

// Environment variable names for configuration.
const (
	// DebugEnv enables debug logging.
	DebugEnv = "SINSFETCH_DEBUG"

	// ConfigEnv points at the configuration file used when --config is absent.
	ConfigEnv = "SINSFETCH_CONFIG"

	// LogFileEnv mirrors every log line into a file.
	LogFileEnv = "SINSFETCH_LOG_FILE"
)

// EnvBool reports whether the variable holds a true value as understood by
// strconv.ParseBool. Unset or malformed values are false.
func EnvBool(name string) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && v
}
