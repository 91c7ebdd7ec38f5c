package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// ContextWithKey annotates the context with the cache key of the current
// operation. The runtime does this before invoking fetch callbacks, so
// application logs emitted inside a fetch automatically carry the key.
func ContextWithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

// KeyFromContext returns the cache key annotated on the context, if any.
func KeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(ctxKey{}).(string)
	return key, ok && key != ""
}

// keyHandler wraps a slog.Handler and injects the context's cache key
// into every record. Extraction happens per log call so records always
// carry the key of the operation in flight.
type keyHandler struct {
	next slog.Handler
}

func newKeyHandler(next slog.Handler) slog.Handler {
	return &keyHandler{next: next}
}

func (h *keyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *keyHandler) Handle(ctx context.Context, rec slog.Record) error {
	if key, ok := KeyFromContext(ctx); ok {
		rec.AddAttrs(slog.String("cache_key", key))
	}
	return h.next.Handle(ctx, rec)
}

func (h *keyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &keyHandler{next: h.next.WithAttrs(attrs)}
}

func (h *keyHandler) WithGroup(name string) slog.Handler {
	return &keyHandler{next: h.next.WithGroup(name)}
}
