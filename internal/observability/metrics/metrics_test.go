package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("result", "valid"),
		attribute.String("user_id", "456"),
		attribute.String("endpoint", "/api/otp"),
	)
	assert.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("user_id"), attr.Key)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordUserCreated(ctx, "user")
	m.RecordOTPGenerated(ctx)
	m.RecordOTPValidated(ctx, true)
	m.RecordPaymentPaid(ctx)
	m.RecordRateLimitDenied(ctx, "otp")
	m.RecordJobRun(ctx, "otp_sweep", "ok", time.Second)
}

func TestNoopInstruments(t *testing.T) {
	m := NewNoop()
	assert.NotNil(t, m)
	m.RecordOTPValidated(context.Background(), false)
}
