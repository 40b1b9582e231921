package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		profile string
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "structured info", level: "info", profile: "structured", enabled: zapcore.InfoLevel},
		{name: "console debug", level: "DEBUG", profile: "console", enabled: zapcore.DebugLevel},
		{name: "default profile", level: "warn", profile: "", enabled: zapcore.WarnLevel},
		{name: "bad level", level: "loud", profile: "console", wantErr: true},
		{name: "bad profile", level: "info", profile: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger("keeptree", tt.level, tt.profile)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			if tt.enabled > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.enabled-1))
			}
		})
	}
}

func TestInitCLILogger(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	InitCLILogger("test", false)
	assert.False(t, CLILogger.Core().Enabled(zapcore.DebugLevel))

	InitCLILogger("test", true)
	assert.True(t, CLILogger.Core().Enabled(zapcore.DebugLevel))
}

func TestConfigureCLILogger(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	require.NoError(t, ConfigureCLILogger("test", "error", "structured"))
	assert.False(t, CLILogger.Core().Enabled(zapcore.WarnLevel))

	before := CLILogger
	assert.Error(t, ConfigureCLILogger("test", "nope", "structured"))
	assert.Same(t, before, CLILogger)
}
