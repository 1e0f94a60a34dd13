// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines token issuance parameters.
type AuthConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	JWTSecret       string `mapstructure:"jwt_secret"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
}

// CrawlerConfig governs fetching and extraction behavior.
type CrawlerConfig struct {
	Fetcher           string   `mapstructure:"fetcher"`
	UserAgent         string   `mapstructure:"user_agent"`
	Concurrency       int      `mapstructure:"concurrency"`
	QueueDepth        int      `mapstructure:"queue_depth"`
	DefaultMaxPosts   int      `mapstructure:"default_max_posts"`
	NavTimeoutSec     int      `mapstructure:"nav_timeout_seconds"`
	ScrollCount       int      `mapstructure:"scroll_count"`
	HeadlessParallel  int      `mapstructure:"headless_max_parallel"`
	FetchTimeoutSec   int      `mapstructure:"fetch_timeout_seconds"`
	RespectRobotsText bool     `mapstructure:"respect_robots"`
	BlockedHosts      []string `mapstructure:"blocked_hosts"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// RedisConfig controls the cache and session backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig governs post caching and index sweeping.
type CacheConfig struct {
	TTLMinutes       int `mapstructure:"ttl_minutes"`
	SweepIntervalMin int `mapstructure:"sweep_interval_minutes"`
	SweepBatchSize   int `mapstructure:"sweep_batch_size"`
}

// StorageConfig sets snapshot archiving behavior.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for completion event publishing.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RateLimitConfig bounds crawl submissions per principal.
type RateLimitConfig struct {
	SubmitsPerMinute float64 `mapstructure:"submits_per_minute"`
	Burst            int     `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGEFEED")
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 120)
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.token_ttl_minutes", 30)
	v.SetDefault("crawler.fetcher", "static")
	v.SetDefault("crawler.user_agent", "pagefeed-bot/0.1")
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.default_max_posts", 10)
	v.SetDefault("crawler.nav_timeout_seconds", 45)
	v.SetDefault("crawler.scroll_count", 3)
	v.SetDefault("crawler.headless_max_parallel", 1)
	v.SetDefault("crawler.fetch_timeout_seconds", 15)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.sweep_interval_minutes", 5)
	v.SetDefault("cache.sweep_batch_size", 100)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("pubsub.provider", "memory")
	v.SetDefault("pubsub.topic_name", "page-ingested")
	v.SetDefault("ratelimit.submits_per_minute", 30)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	switch c.Crawler.Fetcher {
	case "static", "headless", "auto", "noop":
	default:
		return fmt.Errorf("crawler.fetcher must be one of static, headless, auto, noop")
	}
	if (c.Crawler.Fetcher == "headless" || c.Crawler.Fetcher == "auto") && c.Crawler.HeadlessParallel <= 0 {
		return fmt.Errorf("crawler.headless_max_parallel must be > 0 when headless rendering is enabled")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set when auth is enabled")
	}
	if c.Cache.TTLMinutes <= 0 {
		return fmt.Errorf("cache.ttl_minutes must be > 0")
	}
	switch c.Storage.Provider {
	case "memory", "local", "gcs":
	default:
		return fmt.Errorf("storage.provider must be one of memory, local, gcs")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
	}
	if c.Storage.Provider == "local" && c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir must be set for the local provider")
	}
	switch c.PubSub.Provider {
	case "memory", "pubsub":
	default:
		return fmt.Errorf("pubsub.provider must be one of memory, pubsub")
	}
	if c.PubSub.Provider == "pubsub" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set for the pubsub provider")
	}
	return nil
}

// CacheTTL returns the configured cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// TokenTTL returns the configured session lifetime as a duration.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// SweepInterval returns the cache sweep cadence as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalMin) * time.Minute
}
