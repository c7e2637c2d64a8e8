package correlation

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestFromHeaderOrNew(t *testing.T) {
	existing := New()
	assert.Equal(t, existing, FromHeaderOrNew(existing))

	generated := FromHeaderOrNew("not-a-ulid")
	_, err := ulid.ParseStrict(generated)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-ulid", generated)
}

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "abc")
	ctx, id := EnsureCorrelationID(ctx)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", ExtractCorrelationID(ctx))
}

func TestInjectTrace(t *testing.T) {
	meta := InjectTrace(nil, "cid", trace.SpanFromContext(context.Background()))
	assert.Equal(t, "cid", meta["correlation_id"])
	assert.NotContains(t, meta, "trace_id")
	assert.Contains(t, meta, "published_at")

	meta = InjectTrace(map[string]any{"correlation_id": "kept"}, "other", nil)
	assert.Equal(t, "kept", meta["correlation_id"])
}
