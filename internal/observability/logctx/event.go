package logctx

import (
	"context"
	"sort"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEvent injects a logger for background/worker executions. It always carries an
// event_id (generated when attrs has none), trace/span IDs when ctx holds a valid span,
// and the remaining attrs, which should stay low-cardinality.
func WithEvent(ctx context.Context, base observability.Logger, attrs map[string]string) context.Context {
	if base == nil {
		base = FromOr(ctx, observability.NopLogger())
	}

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields := make([]observability.Field, 0, len(attrs)+3)
	fields = append(fields, observability.F("event_id", evtID))

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}

	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, observability.F(k, attrs[k]))
	}

	return With(ctx, base.With(fields...))
}
