package observability

import (
	"strings"

	"github.com/smallbiznis/accounts/internal/config"
	"github.com/smallbiznis/accounts/internal/observability/logger"
	"github.com/smallbiznis/accounts/internal/observability/metrics"
	"github.com/smallbiznis/accounts/internal/observability/tracing"
)

// Config is the observability slice of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	TracingEnabled   bool
	MetricsEnabled   bool
	ExporterEndpoint string
	ExporterProtocol string
	SampleRatio      float64
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "accounts"
	}
	return Config{
		ServiceName:      name,
		Environment:      strings.TrimSpace(cfg.Environment),
		Version:          strings.TrimSpace(cfg.AppVersion),
		LogLevel:         cfg.LogLevel,
		LogFormat:        cfg.LogFormat,
		TracingEnabled:   cfg.TracingEnabled,
		MetricsEnabled:   cfg.MetricsEnabled,
		ExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		ExporterProtocol: cfg.OTLPProtocol,
		SampleRatio:      cfg.TraceSampleRatio,
	}
}

// Debug is true for debug logging or any non-production environment name
// used locally.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) Logger() logger.Config {
	return logger.Config{
		ServiceName: c.ServiceName,
		Environment: c.Environment,
		Version:     c.Version,
		Level:       c.LogLevel,
		Format:      c.LogFormat,
		Debug:       c.Debug(),
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.TracingEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.ExporterEndpoint,
		ExporterProtocol: c.ExporterProtocol,
		SamplingRatio:    c.SampleRatio,
	}
}

func (c Config) Metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.MetricsEnabled,
		ExporterEndpoint: c.ExporterEndpoint,
		ExporterProtocol: c.ExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
