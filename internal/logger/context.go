package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger returns a child context carrying l. Code downstream
// gets it back through L.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// L returns the logger carried by ctx, or the global zap logger when
// the context carries none.
func L(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.L()
}

// With returns a child context whose logger carries the extra fields.
// Callers use it to stamp every log line below them with scoped
// identifiers like the call id or the push frame type.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return ContextWithLogger(ctx, L(ctx).With(fields...))
}
