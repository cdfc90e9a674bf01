// Package oteltrace backs observability.Tracer with an OpenTelemetry tracer.
// Spans are no-ops until an SDK TracerProvider is installed with otel.SetTracerProvider.
package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultScope = "storefront"

type options struct {
	provider trace.TracerProvider
	base     []attribute.KeyValue
}

type Option func(*options)

// WithProvider resolves the tracer from tp instead of the global provider.
func WithProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.provider = tp }
}

// WithAttributes stamps attrs on every span, ahead of the per-call attributes.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) { o.base = append(o.base, attrs...) }
}

type tracer struct {
	t    trace.Tracer
	base []attribute.KeyValue
}

func New(scope string, opts ...Option) observability.Tracer {
	if scope == "" {
		scope = defaultScope
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.provider == nil {
		o.provider = otel.GetTracerProvider()
	}
	return &tracer{t: o.provider.Tracer(scope), base: o.base}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if len(t.base) == 0 {
		return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
	}
	all := make([]attribute.KeyValue, 0, len(t.base)+len(attrs))
	all = append(append(all, t.base...), attrs...)
	return t.t.Start(ctx, name, trace.WithAttributes(all...))
}
