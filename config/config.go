// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voxbridge/voxbridge/domain/ratelimit"
	"github.com/voxbridge/voxbridge/domain/usage"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Store     StoreConfig      `yaml:"store"`
	Auth      AuthConfig       `yaml:"auth"`
	Upstream  UpstreamConfig   `yaml:"upstream"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
	Rates     usage.Rates      `yaml:"rates"`
	Logging   LoggingConfig    `yaml:"logging"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig selects and configures the counter/usage backend.
type StoreConfig struct {
	Driver string       `yaml:"driver"` // "memory", "sqlite" or "redis"
	DSN    string       `yaml:"dsn"`    // sqlite database path
	Redis  RedisConfig  `yaml:"redis,omitempty"`
	Memory MemoryConfig `yaml:"memory,omitempty"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// MemoryConfig configures the in-process backend.
type MemoryConfig struct {
	Shards          int           `yaml:"shards"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// UpstreamConfig configures the paid provider backends that metered
// requests are forwarded to.
type UpstreamConfig struct {
	Endpoints map[string]string `yaml:"endpoints"` // endpoint name -> provider URL
	Timeout   time.Duration     `yaml:"timeout"`
	Headers   map[string]string `yaml:"headers,omitempty"` // added to every provider call
}

// EndpointConfig configures quota ceilings for one metered endpoint.
// Endpoints absent from the list are unmetered.
type EndpointConfig struct {
	Name      string `yaml:"name"`
	PerMinute int    `yaml:"per_minute"`
	PerHour   int    `yaml:"per_hour"`
	PerDay    int    `yaml:"per_day"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// DefaultEndpoints is the stock quota table. The emergency endpoint is
// deliberately absent so urgent phrases are never throttled.
func DefaultEndpoints() []EndpointConfig {
	return []EndpointConfig{
		{Name: "predict", PerMinute: 30, PerHour: 500, PerDay: 5000},
		{Name: "speak", PerMinute: 20, PerHour: 200, PerDay: 2000},
		{Name: "categorize", PerMinute: 30, PerHour: 300, PerDay: 3000},
		{Name: "transcribe", PerMinute: 10, PerHour: 100, PerDay: 1000},
		{Name: "clone-voice", PerMinute: 2, PerHour: 5, PerDay: 10},
	}
}

// Policies converts the endpoint list to the limiter's policy table.
func (c *Config) Policies() map[string]ratelimit.Policy {
	table := make(map[string]ratelimit.Policy, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		table[ep.Name] = ratelimit.Policy{
			PerMinute: ep.PerMinute,
			PerHour:   ep.PerHour,
			PerDay:    ep.PerDay,
		}
	}
	return table
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for container deployments where no config file is mounted.
//
// Environment variables:
//
//	VOXBRIDGE_SERVER_HOST     - Server host (default: 0.0.0.0)
//	VOXBRIDGE_SERVER_PORT     - Server port (default: 8080)
//	VOXBRIDGE_STORE_DRIVER    - Store driver: memory, sqlite or redis (default: memory)
//	VOXBRIDGE_STORE_DSN       - SQLite database path (default: voxbridge.db)
//	VOXBRIDGE_REDIS_ADDR      - Redis address for the redis driver
//	VOXBRIDGE_JWT_SECRET      - Secret for bearer token verification (required)
//	VOXBRIDGE_LOG_LEVEL       - Log level: debug, info, warn, error (default: info)
//	VOXBRIDGE_LOG_FORMAT      - Log format: json or console (default: json)
//	VOXBRIDGE_METRICS_ENABLED - Enable /metrics endpoint (default: false)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if os.Getenv("VOXBRIDGE_JWT_SECRET") != "" {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set VOXBRIDGE_JWT_SECRET")
}

// applyEnvOverrides applies VOXBRIDGE_* environment variables to the
// config. Environment variables always override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOXBRIDGE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("VOXBRIDGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VOXBRIDGE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("VOXBRIDGE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("VOXBRIDGE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("VOXBRIDGE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("VOXBRIDGE_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("VOXBRIDGE_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv("VOXBRIDGE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.Redis.DB = n
		}
	}

	if v := os.Getenv("VOXBRIDGE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("VOXBRIDGE_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}

	if v := os.Getenv("VOXBRIDGE_UPSTREAM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upstream.Timeout = d
		}
	}

	if v := os.Getenv("VOXBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VOXBRIDGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("VOXBRIDGE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("VOXBRIDGE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = "voxbridge.db"
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = "localhost:6379"
	}
	if cfg.Store.Memory.Shards == 0 {
		cfg.Store.Memory.Shards = 32
	}
	if cfg.Store.Memory.CleanupInterval == 0 {
		cfg.Store.Memory.CleanupInterval = 5 * time.Minute
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 30 * time.Second
	}

	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints()
	}

	zero := usage.Rates{}
	if cfg.Rates == zero {
		cfg.Rates = usage.DefaultRates()
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	validDrivers := map[string]bool{"memory": true, "sqlite": true, "redis": true}
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("store.driver must be 'memory', 'sqlite' or 'redis', got %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "redis" && cfg.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required when store.driver is 'redis'")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	seen := make(map[string]bool, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoint with empty name")
		}
		if seen[ep.Name] {
			return fmt.Errorf("duplicate endpoint %q", ep.Name)
		}
		seen[ep.Name] = true
		if ep.PerMinute <= 0 || ep.PerHour <= 0 || ep.PerDay <= 0 {
			return fmt.Errorf("endpoint %q: all window ceilings must be positive", ep.Name)
		}
		if ep.PerMinute > ep.PerHour || ep.PerHour > ep.PerDay {
			return fmt.Errorf("endpoint %q: ceilings must not shrink across wider windows", ep.Name)
		}
	}

	for name, url := range cfg.Upstream.Endpoints {
		if url == "" {
			return fmt.Errorf("upstream.endpoints[%s]: empty URL", name)
		}
	}

	return nil
}
