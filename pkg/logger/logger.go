package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger tagged with the process name ("api", "worker").
// local and dev log at debug level.
func New(appEnv, process string) *slog.Logger {
	return NewWriter(os.Stdout, appEnv, process)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, appEnv, process string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("process", process, "env", appEnv)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
