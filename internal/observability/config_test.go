package observability

import (
	"testing"

	"github.com/smallbiznis/accounts/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaultsServiceName(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:      "production",
		LogLevel:         "info",
		OTLPEndpoint:     " collector:4317 ",
		OTLPProtocol:     "grpc",
		TraceSampleRatio: 0.25,
	})

	assert.Equal(t, "accounts", cfg.ServiceName)
	assert.False(t, cfg.Debug())
	assert.Equal(t, "collector:4317", cfg.Tracing().ExporterEndpoint)
	assert.Equal(t, 0.25, cfg.Tracing().SamplingRatio)
	assert.Equal(t, "accounts", cfg.Metrics().ServiceName)
}

func TestDebugFollowsLevelOrEnvironment(t *testing.T) {
	assert.True(t, Config{LogLevel: "DEBUG", Environment: "production"}.Debug())
	assert.True(t, Config{Environment: "local"}.Debug())
	assert.True(t, Config{Environment: "local"}.Logger().Debug)
	assert.False(t, Config{Environment: "staging"}.Debug())
}
