package correlation

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

// Header is the inbound/outbound HTTP header carrying the correlation ID.
const Header = "X-Correlation-Id"

type correlationKey struct{}

// New returns a fresh, time-sortable correlation ID.
func New() string {
	return ulid.Make().String()
}

// FromHeaderOrNew keeps a caller-supplied ULID and otherwise mints a new one.
func FromHeaderOrNew(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return New()
	}
	if _, err := ulid.ParseStrict(raw); err != nil {
		return New()
	}
	return raw
}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := ExtractCorrelationID(ctx)
	if cid == "" {
		cid = New()
	}
	return ContextWithCorrelationID(ctx, cid), cid
}

// InjectTrace stamps correlation and tracing identifiers into event metadata.
func InjectTrace(metadata map[string]any, correlationID string, span trace.Span) map[string]any {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if existing, ok := metadata["correlation_id"].(string); ok && existing != "" {
		correlationID = existing
	}
	if correlationID == "" {
		correlationID = New()
	}
	metadata["correlation_id"] = correlationID

	if span != nil {
		sc := span.SpanContext()
		if sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
			metadata["span_id"] = sc.SpanID().String()
		}
	}
	metadata["published_at"] = time.Now().UTC().Format(time.RFC3339)
	return metadata
}
