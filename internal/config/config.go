package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/victoralfred/varbacktest/internal/adapters/database"
	"github.com/victoralfred/varbacktest/internal/cache"
	"github.com/victoralfred/varbacktest/internal/logging"
	"github.com/victoralfred/varbacktest/internal/middleware"
)

// EnvPrefix is prepended to every environment override, e.g. VARBT_SERVER_PORT
const EnvPrefix = "VARBT"

// Config holds the application configuration
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Backtest BacktestConfig  `mapstructure:"backtest"`
	Database database.Config `mapstructure:"database"`
	Cache    cache.Config    `mapstructure:"cache"`
	Logging  logging.Config  `mapstructure:"logging"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`

	StartTime time.Time `mapstructure:"-"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int                        `mapstructure:"port"`
	Environment     string                     `mapstructure:"environment"`
	Version         string                     `mapstructure:"version"`
	DocsURL         string                     `mapstructure:"docs_url"`
	ReadTimeout     time.Duration              `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration              `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration              `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64                      `mapstructure:"max_body_bytes"`
	CORS            CORSConfig                 `mapstructure:"cors"`
	RateLimit       middleware.RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// BacktestConfig holds defaults applied to requests that omit them
type BacktestConfig struct {
	DefaultConfidence float64 `mapstructure:"default_confidence"`
	Significance      float64 `mapstructure:"significance"`
	Concurrency       int     `mapstructure:"concurrency"`
	MaxBatchSize      int     `mapstructure:"max_batch_size"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from an optional file, a .env file and
// VARBT_ prefixed environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.StartTime = time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with no file or environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	cfg.StartTime = time.Now()
	return &cfg
}

// setDefaults configures default values for all configuration options.
// Every key needs a default so environment overrides are picked up.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.version", "")
	v.SetDefault("server.docs_url", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", "12h")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.global_rps", 200.0)
	v.SetDefault("server.rate_limit.per_ip_rps", 20.0)
	v.SetDefault("server.rate_limit.burst", 40)

	// Backtest defaults
	v.SetDefault("backtest.default_confidence", 0.99)
	v.SetDefault("backtest.significance", 0.05)
	v.SetDefault("backtest.concurrency", 4)
	v.SetDefault("backtest.max_batch_size", 100)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "varbacktest")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.connection_string", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "1h")
	v.SetDefault("database.connect_timeout", "30s")

	// Cache defaults
	cc := cache.DefaultConfig()
	v.SetDefault("cache.enabled", cc.Enabled)
	v.SetDefault("cache.addr", cc.Addr)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", cc.DB)
	v.SetDefault("cache.ttl", cc.TTL.String())
	v.SetDefault("cache.prefix", cc.Prefix)
	v.SetDefault("cache.breaker_failures", cc.BreakerFailures)
	v.SetDefault("cache.breaker_timeout", cc.BreakerTimeout.String())

	// Logging defaults
	lc := logging.DefaultConfig()
	v.SetDefault("logging.level", lc.Level)
	v.SetDefault("logging.format", lc.Format)
	v.SetDefault("logging.output", lc.Output)
	v.SetDefault("logging.file_path", "")
	v.SetDefault("logging.max_size", lc.MaxSize)
	v.SetDefault("logging.max_backups", lc.MaxBackups)
	v.SetDefault("logging.max_age", lc.MaxAge)
	v.SetDefault("logging.compress", lc.Compress)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if c.Server.RateLimit.Global < 0 || c.Server.RateLimit.PerIP < 0 {
		return fmt.Errorf("server.rate_limit rates must not be negative")
	}

	if c.Backtest.DefaultConfidence <= 0 || c.Backtest.DefaultConfidence >= 1 {
		return fmt.Errorf("backtest.default_confidence must be in (0, 1)")
	}
	if c.Backtest.Significance <= 0 || c.Backtest.Significance >= 1 {
		return fmt.Errorf("backtest.significance must be in (0, 1)")
	}
	if c.Backtest.Concurrency < 1 {
		return fmt.Errorf("backtest.concurrency must be at least 1")
	}
	if c.Backtest.MaxBatchSize < 1 {
		return fmt.Errorf("backtest.max_batch_size must be at least 1")
	}

	if c.Database.Enabled {
		if _, err := c.Database.DSN(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required when cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive")
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	validFormats := map[string]bool{"json": true, "console": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, console, text")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
