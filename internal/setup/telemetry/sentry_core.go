package telemetry

import (
	"fmt"
	"strings"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

// SentryCore implements zapcore.Core to forward errors to Sentry.
type SentryCore struct {
	zapcore.LevelEnabler

	fields []zapcore.Field
}

// NewSentryCore creates a new Core that forwards entries at or above the enabler's level.
func NewSentryCore(enab zapcore.LevelEnabler) *SentryCore {
	return &SentryCore{LevelEnabler: enab}
}

// With keeps logger-scoped fields so they are attached to every event.
func (c *SentryCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)

	return &SentryCore{LevelEnabler: c.LevelEnabler, fields: merged}
}

// Check determines whether the supplied Entry should be logged.
func (c *SentryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// Write captures the entry as a Sentry exception event.
func (c *SentryCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return nil
	}

	enc := zapcore.NewMapObjectEncoder()

	var errorValues []string

	for _, field := range append(c.fields, fields...) {
		if field.Type == zapcore.ErrorType {
			if err, ok := field.Interface.(error); ok {
				errorValues = append(errorValues, err.Error())
			}

			continue
		}

		field.AddTo(enc)
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range enc.Fields {
			scope.SetExtra(k, v)
		}

		if name := ent.LoggerName; name != "" {
			scope.SetTag("logger", name)
		}

		event := sentry.NewEvent()
		event.Level = sentryLevel(ent.Level)
		event.Message = ent.Message

		value := ent.Message
		if len(errorValues) > 0 {
			value = fmt.Sprintf("%s: %s", ent.Message, strings.Join(errorValues, "; "))
		}

		event.Exception = []sentry.Exception{{
			Value:      value,
			Type:       callerFunction(ent.Caller.Function),
			Module:     callerPackage(ent.Caller.Function),
			Stacktrace: sentry.NewStacktrace(),
		}}

		hub.CaptureEvent(event)
	})

	return nil
}

// Sync implements zapcore.Core.
func (c *SentryCore) Sync() error {
	return nil
}

// ReportWarning sends a handled error to Sentry at warning level.
// It is a no-op when Sentry is not configured.
func ReportWarning(err error, extras map[string]any) {
	hub := sentry.CurrentHub()
	if hub.Client() == nil || err == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)

		for k, v := range extras {
			scope.SetExtra(k, v)
		}

		hub.CaptureException(err)
	})
}

func sentryLevel(level zapcore.Level) sentry.Level {
	switch level {
	case zapcore.DebugLevel:
		return sentry.LevelDebug
	case zapcore.InfoLevel:
		return sentry.LevelInfo
	case zapcore.WarnLevel:
		return sentry.LevelWarning
	case zapcore.ErrorLevel:
		return sentry.LevelError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel, zapcore.InvalidLevel:
		return sentry.LevelFatal
	default:
		return sentry.LevelError
	}
}

// callerPackage returns "github.com/x/y/pkg" for "github.com/x/y/pkg.(*T).Method".
func callerPackage(function string) string {
	lastSlash := strings.LastIndexByte(function, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}

	if dot := strings.IndexByte(function[lastSlash:], '.'); dot >= 0 {
		return function[:lastSlash+dot]
	}

	return function
}

// callerFunction returns the final element of a qualified function name.
func callerFunction(function string) string {
	if lastDot := strings.LastIndexByte(function, '.'); lastDot >= 0 {
		return function[lastDot+1:]
	}

	return function
}
