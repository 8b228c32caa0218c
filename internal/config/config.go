// Package config loads and validates resolver configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. LOGO_BATCH_WORKER_COUNT.
const EnvPrefix = "LOGO"

// DefaultUserAgent identifies as a desktop browser; many sites reject unidentified clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// HTTPConfig configures outbound requests for documents and assets.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// BatchConfig governs the worker pool.
type BatchConfig struct {
	WorkerCount       int `mapstructure:"worker_count"`
	PacingDelayMillis int `mapstructure:"pacing_delay_millis"`
	QueueDepth        int `mapstructure:"queue_depth"`
}

// ResolverConfig tunes candidate validation.
type ResolverConfig struct {
	MinimumLogoDimensionPixels int   `mapstructure:"minimum_logo_dimension_pixels"`
	MaxAssetBytes              int64 `mapstructure:"max_asset_bytes"`
	VectorRenderSize           int   `mapstructure:"vector_render_size"`
}

// NormalizerConfig controls the stored representation.
type NormalizerConfig struct {
	OutputEncoding  string `mapstructure:"output_encoding"`
	BackgroundColor string `mapstructure:"background_color"`
	JPEGQuality     int    `mapstructure:"jpeg_quality"`
}

// StorageConfig selects the artifact sink.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalStorageConfig `mapstructure:"local"`
	GCS     GCSStorageConfig   `mapstructure:"gcs"`
}

// LocalStorageConfig configures the filesystem sink.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSStorageConfig configures the Cloud Storage sink.
type GCSStorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// NotifyConfig selects where finished results are published.
type NotifyConfig struct {
	Backend string       `mapstructure:"backend"`
	PubSub  PubSubConfig `mapstructure:"pubsub"`
	NATS    NATSConfig   `mapstructure:"nats"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// NATSConfig holds the NATS connection settings.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Storage and notifier backends.
const (
	BackendNone   = "none"
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
	BackendPubSub = "pubsub"
	BackendNATS   = "nats"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith builds a Config using v, which may already carry flag bindings.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
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
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.per_host_rps", 0)
	v.SetDefault("http.per_host_burst", 1)
	v.SetDefault("batch.worker_count", 4)
	v.SetDefault("batch.pacing_delay_millis", 500)
	v.SetDefault("batch.queue_depth", 64)
	v.SetDefault("resolver.minimum_logo_dimension_pixels", 16)
	v.SetDefault("resolver.max_asset_bytes", 10<<20)
	v.SetDefault("resolver.vector_render_size", 512)
	v.SetDefault("normalizer.output_encoding", "png")
	v.SetDefault("normalizer.background_color", "#ffffff")
	v.SetDefault("normalizer.jpeg_quality", 90)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local.base_dir", "logos")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("notify.backend", BackendNone)
	v.SetDefault("notify.pubsub.project_id", "")
	v.SetDefault("notify.pubsub.topic", "")
	v.SetDefault("notify.nats.url", "")
	v.SetDefault("notify.nats.subject", "")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PerHostRPS < 0 {
		return fmt.Errorf("http.per_host_rps must be >= 0")
	}
	if c.HTTP.PerHostRPS > 0 && c.HTTP.PerHostBurst <= 0 {
		return fmt.Errorf("http.per_host_burst must be > 0 when rate limiting is enabled")
	}
	if c.Batch.WorkerCount <= 0 {
		return fmt.Errorf("batch.worker_count must be > 0")
	}
	if c.Batch.PacingDelayMillis < 0 {
		return fmt.Errorf("batch.pacing_delay_millis must be >= 0")
	}
	if c.Batch.QueueDepth <= 0 {
		return fmt.Errorf("batch.queue_depth must be > 0")
	}
	if c.Resolver.MinimumLogoDimensionPixels <= 0 {
		return fmt.Errorf("resolver.minimum_logo_dimension_pixels must be > 0")
	}
	if c.Resolver.MaxAssetBytes <= 0 {
		return fmt.Errorf("resolver.max_asset_bytes must be > 0")
	}
	if c.Resolver.VectorRenderSize < c.Resolver.MinimumLogoDimensionPixels {
		return fmt.Errorf("resolver.vector_render_size must be >= resolver.minimum_logo_dimension_pixels")
	}
	switch strings.ToLower(c.Normalizer.OutputEncoding) {
	case "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("normalizer.output_encoding must be png or jpeg")
	}
	if c.Normalizer.JPEGQuality < 1 || c.Normalizer.JPEGQuality > 100 {
		return fmt.Errorf("normalizer.jpeg_quality must be between 1 and 100")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case BackendLocal:
		if s.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case BackendMemory:
	case BackendGCS:
		if s.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", s.Backend)
	}
	return nil
}

func (n NotifyConfig) validate() error {
	switch n.Backend {
	case BackendNone, BackendMemory:
	case BackendPubSub:
		if n.PubSub.ProjectID == "" || n.PubSub.Topic == "" {
			return fmt.Errorf("notify.pubsub.project_id and notify.pubsub.topic must be set for the pubsub backend")
		}
	case BackendNATS:
		if n.NATS.URL == "" || n.NATS.Subject == "" {
			return fmt.Errorf("notify.nats.url and notify.nats.subject must be set for the nats backend")
		}
	default:
		return fmt.Errorf("notify.backend %q is not supported", n.Backend)
	}
	return nil
}

// RequestTimeout is the per-request budget for documents and assets.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PacingDelay is the pause between units when the pool has a single worker.
func (c Config) PacingDelay() time.Duration {
	return time.Duration(c.Batch.PacingDelayMillis) * time.Millisecond
}

// NavTimeout bounds a headless navigation.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
