package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestCallerNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		function string
		pkg      string
		fn       string
	}{
		{
			name:     "method",
			function: "github.com/robalyx/snowball/internal/cogs/whitelist.(*Whitelist).Sweep",
			pkg:      "github.com/robalyx/snowball/internal/cogs/whitelist",
			fn:       "Sweep",
		},
		{
			name:     "function",
			function: "main.run",
			pkg:      "main",
			fn:       "run",
		},
		{
			name:     "empty",
			function: "",
			pkg:      "",
			fn:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.pkg, callerPackage(tt.function))
			assert.Equal(t, tt.fn, callerFunction(tt.function))
		})
	}
}

func TestSentryLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sentry.LevelError, sentryLevel(zapcore.ErrorLevel))
	assert.Equal(t, sentry.LevelWarning, sentryLevel(zapcore.WarnLevel))
	assert.Equal(t, sentry.LevelFatal, sentryLevel(zapcore.PanicLevel))
}

func TestSentryCoreWithoutClient(t *testing.T) {
	t.Parallel()

	core := NewSentryCore(zapcore.ErrorLevel).With([]zapcore.Field{{Key: "guild", Type: zapcore.StringType, String: "1"}})

	assert.True(t, core.Enabled(zapcore.ErrorLevel))
	assert.False(t, core.Enabled(zapcore.WarnLevel))
	assert.NoError(t, core.Write(zapcore.Entry{Level: zapcore.ErrorLevel, Message: "boom"}, nil))
}
