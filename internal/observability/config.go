package observability

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/cuotas/internal/config"
	"github.com/smallbiznis/cuotas/internal/observability/metrics"
	"github.com/smallbiznis/cuotas/internal/observability/tracing"
)

// Exporter is the OTLP collector shared by traces and metrics.
type Exporter struct {
	Enabled  bool
	Endpoint string
	Protocol string
}

// Config is the observability view of the app config. Standard OTEL_*
// variables win over the app's own settings so collectors can be pointed
// elsewhere without touching the deployment's config.
type Config struct {
	ServiceName string
	Version     string
	Environment string
	LogLevel    string

	Exporter      Exporter
	SamplingRatio float64
}

func LoadConfig(cfg config.Config) (Config, error) {
	out := Config{
		ServiceName: firstNonEmpty(cfg.AppName, "cuotas"),
		Version:     envOr("SERVICE_VERSION", cfg.AppVersion),
		Environment: envOr("DEPLOYMENT_ENV", cfg.Environment),
		LogLevel:    cfg.Logger.Level,
		Exporter: Exporter{
			Enabled:  cfg.OTelEnabled,
			Endpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
			Protocol: strings.ToLower(envOr("OTEL_EXPORTER_OTLP_PROTOCOL", cfg.OTLPProtocol)),
		},
		SamplingRatio: 0.1,
	}

	if raw := envOr("OTEL_SAMPLING_RATIO", ""); raw != "" {
		ratio, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid OTEL_SAMPLING_RATIO %q: %w", raw, err)
		}
		out.SamplingRatio = ratio
	}

	switch out.Exporter.Protocol {
	case "", "grpc", "grpc/protobuf", "http", "http/protobuf":
	default:
		return Config{}, fmt.Errorf("unsupported otlp protocol %q", out.Exporter.Protocol)
	}
	return out, nil
}

// Debug reports whether request logs should carry stack traces.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

// split derives the per-signal configs consumed by the providers.
func (c Config) split() (tracing.Config, metrics.Config) {
	return tracing.Config{
			Enabled:          c.Exporter.Enabled,
			ServiceName:      c.ServiceName,
			ServiceVersion:   c.Version,
			Environment:      c.Environment,
			ExporterEndpoint: c.Exporter.Endpoint,
			ExporterProtocol: c.Exporter.Protocol,
			SamplingRatio:    c.SamplingRatio,
		}, metrics.Config{
			Enabled:          c.Exporter.Enabled,
			ExporterEndpoint: c.Exporter.Endpoint,
			ExporterProtocol: c.Exporter.Protocol,
			ServiceName:      c.ServiceName,
			Environment:      c.Environment,
		}
}

func envOr(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(def)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
