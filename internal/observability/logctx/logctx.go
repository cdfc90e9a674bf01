// Package logctx carries the request-scoped logger through a context so that use cases
// log with the request_id, trace and identity fields the HTTP layer attached.
package logctx

import (
	"context"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
)

type ctxKey struct{}

// With returns ctx carrying logger. A nil logger leaves ctx untouched.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

// From returns the logger stored on ctx, or nil.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	if logger, ok := ctx.Value(ctxKey{}).(observability.Logger); ok {
		return logger
	}
	return nil
}

// FromOr is From with a fallback for background work that never passed through HTTP.
func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	return fallback
}

// Enrich derives a logger with fields from the one on ctx (or fallback) and stores it back.
// Callers get both so they can log immediately and pass ctx down.
func Enrich(ctx context.Context, fallback observability.Logger, fields ...observability.Field) (context.Context, observability.Logger) {
	logger := FromOr(ctx, fallback)
	if logger == nil {
		logger = observability.NopLogger()
	}
	if len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return With(ctx, logger), logger
}
