package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/sissync/pkg/logging"
)

// NewLogger builds the process logger from a resolved Config and installs it
// as the package default.
//
// The level comes from log_level when set. Like every other key it is
// layered by loadConfig: command-line flags over SISSYNC_LOG_LEVEL (also
// read from .env.local and .env) over ~/.sissync.yaml. Without log_level,
// -v selects debug and -q selects warn; -q wins when both are given.
// Anything else logs at info.
func NewLogger(config *Config) zerolog.Logger {
	level, warning := logLevel(config)
	if warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}

	logger := logging.NewLoggerFromConfig(&logging.Config{
		Level:     level.String(),
		Format:    config.LogFormat,
		Output:    config.LogOutput,
		NoColor:   config.NoColor,
		AddCaller: level <= zerolog.DebugLevel,
	})
	logging.SetDefault(logger)
	return logger
}

// logLevel resolves the configured level and returns a warning for
// settings it had to override.
func logLevel(config *Config) (zerolog.Level, string) {
	switch {
	case config.LogLevel != "":
		level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(config.LogLevel)))
		if err != nil || level < zerolog.TraceLevel || level > zerolog.ErrorLevel {
			return zerolog.InfoLevel, fmt.Sprintf("invalid log level %q, using info", config.LogLevel)
		}
		return level, ""
	case config.Verbose && config.Quiet:
		return zerolog.WarnLevel, "both --verbose and --quiet given, using --quiet"
	case config.Verbose:
		return zerolog.DebugLevel, ""
	case config.Quiet:
		return zerolog.WarnLevel, ""
	}
	return zerolog.InfoLevel, ""
}
