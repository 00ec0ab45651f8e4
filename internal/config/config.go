package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TELEMETRY"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Errors    ErrorsConfig    `mapstructure:"errors"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DetectorConfig struct {
	Contamination   float64 `mapstructure:"contamination"`
	NumEstimators   int     `mapstructure:"n_estimators"`
	MaxSamples      int     `mapstructure:"max_samples"`
	Seed            int64   `mapstructure:"seed"`
	ZScoreThreshold float64 `mapstructure:"zscore_threshold"`
}

type ErrorsConfig struct {
	// ExposeDetails returns internal error messages to clients verbatim.
	ExposeDetails bool `mapstructure:"expose_details"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	// TrustedProxies are CIDRs whose X-Forwarded-For header identifies the
	// client. Empty means the peer address is always used.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Detector: DetectorConfig{
			Contamination:   0.1,
			NumEstimators:   100,
			MaxSamples:      256,
			Seed:            0,
			ZScoreThreshold: 3.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:        false,
			RedisAddr:      "localhost:6379",
			Limit:          100,
			Window:         time.Minute,
			TrustedProxies: []string{},
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// variables understood by earlier deployments
	_ = v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("ratelimit.redis_addr", envPrefix+"_RATELIMIT_REDIS_ADDR", "REDIS_ADDR")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("detector.contamination", d.Detector.Contamination)
	v.SetDefault("detector.n_estimators", d.Detector.NumEstimators)
	v.SetDefault("detector.max_samples", d.Detector.MaxSamples)
	v.SetDefault("detector.seed", d.Detector.Seed)
	v.SetDefault("detector.zscore_threshold", d.Detector.ZScoreThreshold)

	v.SetDefault("errors.expose_details", d.Errors.ExposeDetails)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("ratelimit.enabled", d.RateLimit.Enabled)
	v.SetDefault("ratelimit.redis_addr", d.RateLimit.RedisAddr)
	v.SetDefault("ratelimit.limit", d.RateLimit.Limit)
	v.SetDefault("ratelimit.window", d.RateLimit.Window)
	v.SetDefault("ratelimit.trusted_proxies", d.RateLimit.TrustedProxies)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Detector.Contamination <= 0 || c.Detector.Contamination > 0.5 {
		errs = append(errs, fmt.Errorf("detector.contamination must be in (0, 0.5], got %g", c.Detector.Contamination))
	}
	if c.Detector.NumEstimators < 1 {
		errs = append(errs, fmt.Errorf("detector.n_estimators must be positive, got %d", c.Detector.NumEstimators))
	}
	if c.Detector.MaxSamples < 1 {
		errs = append(errs, fmt.Errorf("detector.max_samples must be positive, got %d", c.Detector.MaxSamples))
	}
	if c.Detector.ZScoreThreshold <= 0 {
		errs = append(errs, fmt.Errorf("detector.zscore_threshold must be positive, got %g", c.Detector.ZScoreThreshold))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RedisAddr == "" {
			errs = append(errs, errors.New("ratelimit.redis_addr is required when rate limiting is enabled"))
		}
		if c.RateLimit.Limit < 1 {
			errs = append(errs, fmt.Errorf("ratelimit.limit must be positive, got %d", c.RateLimit.Limit))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("ratelimit.window must be positive, got %s", c.RateLimit.Window))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}
