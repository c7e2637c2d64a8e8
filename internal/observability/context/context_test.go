package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithCorrelationID(ctx, "01HZ")
	ctx = WithActor(ctx, "user", "42")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "01HZ", CorrelationIDFromContext(ctx))
	typ, id := ActorFromContext(ctx)
	assert.Equal(t, "user", typ)
	assert.Equal(t, "42", id)
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	typ, id := ActorFromContext(ctx)
	assert.Empty(t, typ)
	assert.Empty(t, id)
}
