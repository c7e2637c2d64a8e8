package observability

import (
	"github.com/smallbiznis/accounts/internal/observability/logger"
	"github.com/smallbiznis/accounts/internal/observability/metrics"
	"github.com/smallbiznis/accounts/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the root zap logger, the tracer provider, the domain
// metrics instruments and the HTTP prometheus collectors.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// the tracer provider registers the global propagator; force it to build
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
