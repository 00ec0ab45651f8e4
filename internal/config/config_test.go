package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, 0.1, cfg.Detector.Contamination)
	assert.Equal(t, 100, cfg.Detector.NumEstimators)
	assert.Equal(t, 256, cfg.Detector.MaxSamples)
	assert.Zero(t, cfg.Detector.Seed)
	assert.False(t, cfg.Errors.ExposeDetails)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Detector, cfg.Detector)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
  read_timeout: 5s
detector:
  contamination: 0.2
  seed: 42
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TELEMETRY_DETECTOR_N_ESTIMATORS", "50")
	t.Setenv("TELEMETRY_ERRORS_EXPOSE_DETAILS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 0.2, cfg.Detector.Contamination)
	assert.Equal(t, int64(42), cfg.Detector.Seed)
	assert.Equal(t, 50, cfg.Detector.NumEstimators)
	assert.True(t, cfg.Errors.ExposeDetails)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "redis:6379", cfg.RateLimit.RedisAddr)
}

func TestLoad_TrustedProxies(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.RateLimit.TrustedProxies)

	t.Setenv("TELEMETRY_RATELIMIT_TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.1")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.RateLimit.TrustedProxies)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		modifyFn func(*Config)
		errorMsg string
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"contamination zero", func(c *Config) { c.Detector.Contamination = 0 }, "detector.contamination"},
		{"contamination above half", func(c *Config) { c.Detector.Contamination = 0.6 }, "detector.contamination"},
		{"no estimators", func(c *Config) { c.Detector.NumEstimators = 0 }, "detector.n_estimators"},
		{"no samples", func(c *Config) { c.Detector.MaxSamples = 0 }, "detector.max_samples"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{
			"rate limit without redis",
			func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.RedisAddr = ""
			},
			"ratelimit.redis_addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	cfg.Detector.MaxSamples = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "detector.max_samples")
}
