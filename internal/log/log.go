// Package log provides a slog handler that adds attributes carried by a context,
// so per task attributes attached once show up on every record logged with that context.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type slogKeyT struct{}

var slogKey slogKeyT

type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{
		Handler: handler,
	}
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if a, ok := ctx.Value(slogKey).([]slog.Attr); ok {
		r.AddAttrs(a...)
	}

	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// ContextAttrs returns a copy of ctx carrying attrs in addition to the ones already present.
func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	a, _ := ctx.Value(slogKey).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(a)+len(attrs))
	merged = append(merged, a...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, slogKey, merged)
}

// New returns a JSON logger writing to w, os.Stderr if w is nil.
func New(w io.Writer, verbose bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	})
	return slog.New(NewContextHandler(base))
}
