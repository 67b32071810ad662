// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverNone     = "none"
	DriverLocal    = "local"
	DriverGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig  `mapstructure:"logging"`
	Crawler CrawlerConfig  `mapstructure:"crawler"`
	HTTP    HTTPConfig     `mapstructure:"http"`
	Targets []TargetConfig `mapstructure:"targets"`
	State   StateConfig    `mapstructure:"state"`
	Records RecordsConfig  `mapstructure:"records"`
	Archive ArchiveConfig  `mapstructure:"archive"`
	DB      DBConfig       `mapstructure:"db"`
	Redis   RedisConfig    `mapstructure:"redis"`
	PubSub  PubSubConfig   `mapstructure:"pubsub"`
	Server  ServerConfig   `mapstructure:"server"`
	Auth    AuthConfig     `mapstructure:"auth"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs the orchestrator and the product-page fetcher.
type CrawlerConfig struct {
	Concurrency           int     `mapstructure:"concurrency"`
	UserAgent             string  `mapstructure:"user_agent"`
	Cookie                string  `mapstructure:"cookie"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds"`
	RateLimitRPS          float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst        int     `mapstructure:"rate_limit_burst"`
	RespectRobots         bool    `mapstructure:"respect_robots"`
}

// HTTPConfig configures the retrying sitemap client.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// TargetConfig names one site to crawl.
type TargetConfig struct {
	Site          string `mapstructure:"site"`
	IndexURL      string `mapstructure:"index_url"`
	ProductMarker string `mapstructure:"product_marker"`
}

// StateConfig selects the crawl-state backend.
type StateConfig struct {
	Driver string `mapstructure:"driver"`
}

// RecordsConfig selects the comic record backend.
type RecordsConfig struct {
	Driver string `mapstructure:"driver"`
}

// ArchiveConfig controls raw page archiving.
type ArchiveConfig struct {
	Driver    string `mapstructure:"driver"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxConns    int32  `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig controls access to Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds the optional record topic. Publishing is off when TopicName is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COMICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Keys without a meaningful default are still registered so AutomaticEnv can fill them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.cookie", "")
	v.SetDefault("crawler.request_timeout_seconds", 15)
	v.SetDefault("crawler.rate_limit_rps", 0.0)
	v.SetDefault("crawler.rate_limit_burst", 1)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("targets", []map[string]any{{
		"site":           "comicboom",
		"index_url":      "https://comicboom.com.br/wp-sitemap.xml",
		"product_marker": "wp-sitemap-posts-product-",
	}})
	v.SetDefault("state.driver", DriverMemory)
	v.SetDefault("records.driver", DriverMemory)
	v.SetDefault("archive.driver", DriverNone)
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.base_dir", "data/archive")
	v.SetDefault("archive.prefix", "archive")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 0)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "comics")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.RateLimitRPS < 0 {
		return fmt.Errorf("crawler.rate_limit_rps must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if err := c.validateTargets(); err != nil {
		return err
	}
	if err := c.validateDrivers(); err != nil {
		return err
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

func (c Config) validateTargets() error {
	seen := make(map[string]bool, len(c.Targets))
	for i, target := range c.Targets {
		if target.Site == "" || target.IndexURL == "" {
			return fmt.Errorf("targets[%d]: site and index_url are required", i)
		}
		if seen[target.Site] {
			return fmt.Errorf("targets[%d]: duplicate site %q", i, target.Site)
		}
		seen[target.Site] = true
	}
	return nil
}

func (c Config) validateDrivers() error {
	switch c.State.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when state.driver is postgres")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr must be set when state.driver is redis")
		}
	default:
		return fmt.Errorf("state.driver %q is not one of memory, postgres, redis", c.State.Driver)
	}

	switch c.Records.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when records.driver is postgres")
		}
	default:
		return fmt.Errorf("records.driver %q is not one of memory, postgres", c.Records.Driver)
	}

	switch c.Archive.Driver {
	case DriverNone, "":
	case DriverLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.driver is local")
		}
	case DriverGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.driver is gcs")
		}
	default:
		return fmt.Errorf("archive.driver %q is not one of none, local, gcs", c.Archive.Driver)
	}
	return nil
}

// Target returns the configured target for site.
func (c Config) Target(site string) (TargetConfig, bool) {
	for _, target := range c.Targets {
		if target.Site == site {
			return target, true
		}
	}
	return TargetConfig{}, false
}

// RequestTimeout is the per-page fetch timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSeconds) * time.Second
}

// Timeout is the per-attempt sitemap fetch timeout.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// BackoffInitial is the first retry wait.
func (h HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(h.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the retry wait.
func (h HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(h.BackoffMaxMs) * time.Millisecond
}
