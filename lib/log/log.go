// Package log carries a slog.Logger in a context.Context. Engine packages log through the
// context so the CLI, the watch server and tests each decide where records end up.
package log

import (
	"context"
	stdlog "log"
	"os"
	"strconv"
	"testing"
	"time"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"cdr.dev/slog/sloggers/slogtest"
)

var _default = slog.Make(sloghuman.Sink(os.Stderr)).Named("canvas")

type loggerKey struct{}

// from falls back to a stderr logger so library callers that never set one still log.
func from(ctx context.Context) slog.Logger {
	l, ok := ctx.Value(loggerKey{}).(slog.Logger)
	if !ok {
		return _default
	}
	return l
}

func With(ctx context.Context, l slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// WithTB logs to t. Error records fail the test unless opts says otherwise.
func WithTB(ctx context.Context, t testing.TB, opts *slogtest.Options) context.Context {
	l := slogtest.Make(t, opts)
	if debug() {
		l = l.Leveled(slog.LevelDebug)
	}
	return With(ctx, l)
}

// Stderr logs human readable records to stderr and routes the standard library logger
// through them.
func Stderr(ctx context.Context) context.Context {
	l := slog.Make(sloghuman.Sink(os.Stderr))
	if debug() {
		l = l.Leveled(slog.LevelDebug)
	}
	stdlog.SetOutput(slog.Stdlib(ctx, l, slog.LevelInfo).Writer())
	return With(ctx, l)
}

func Named(ctx context.Context, name string) context.Context {
	return With(ctx, from(ctx).Named(name))
}

// Fields attaches fields to every later record logged through ctx.
func Fields(ctx context.Context, fields ...slog.Field) context.Context {
	return With(ctx, from(ctx).With(fields...))
}

func Leveled(ctx context.Context, level slog.Level) context.Context {
	return With(ctx, from(ctx).Leveled(level))
}

func Debug(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	from(ctx).Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	from(ctx).Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	from(ctx).Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	from(ctx).Error(ctx, msg, fields...)
}

// WithTimeout bounds ctx by timeout, or by $CANVAS_TIMEOUT seconds when set. A
// non-positive result leaves ctx unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if secs, ok := timeoutOverride(); ok {
		timeout = time.Duration(secs) * time.Second
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func debug() bool {
	return os.Getenv("DEBUG") != ""
}

func timeoutOverride() (int64, bool) {
	s := os.Getenv("CANVAS_TIMEOUT")
	if s == "" {
		return 0, false
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return secs, true
}
