package observability

import (
	"github.com/smallbiznis/cuotas/internal/observability/metrics"
	"github.com/smallbiznis/cuotas/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the OTLP trace and metric providers together with the
// Prometheus instruments scraped from /metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.split,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.NewSchedulerMetrics,
	),
	// Nothing else depends on the tracer provider; force its construction so
	// the global provider is installed.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
