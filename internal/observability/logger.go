// Package observability holds the process-wide CLI logger.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles.
const (
	ProfileStructured = "structured"
	ProfileConsole    = "console"
)

// CLILogger is used by commands. It is a no-op logger until
// InitCLILogger or ConfigureCLILogger runs.
var CLILogger = zap.NewNop()

// InitCLILogger installs a console logger on stderr named name.
// verbose lowers the level to debug.
func InitCLILogger(name string, verbose bool) {
	level := "info"
	if verbose {
		level = "debug"
	}
	logger, err := NewLogger(name, level, ProfileConsole)
	if err != nil {
		// Only reachable with a bad level or profile, both fixed above.
		return
	}
	CLILogger = logger
}

// ConfigureCLILogger replaces CLILogger with one built from level and profile.
func ConfigureCLILogger(name, level, profile string) error {
	logger, err := NewLogger(name, level, profile)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// NewLogger builds a stderr logger.
//
// The structured profile writes JSON lines with ISO8601 timestamps, the
// console profile writes human-readable colored lines.
func NewLogger(name, level, profile string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case "", ProfileStructured:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	case ProfileConsole:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, fmt.Errorf("invalid log profile %q (expected %s or %s)", profile, ProfileStructured, ProfileConsole)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	logger := zap.New(core)
	if name != "" {
		logger = logger.Named(name)
	}
	return logger, nil
}
