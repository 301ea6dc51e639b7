package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	ProvidersFile  string `mapstructure:"providers_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	HTTP    HTTPConfig    `mapstructure:"http"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Locator LocatorConfig `mapstructure:"locator"`
	Stream  StreamConfig  `mapstructure:"stream"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// HTTPConfig controls the listening server.
type HTTPConfig struct {
	Host                   string        `mapstructure:"host"`
	Port                   int           `mapstructure:"port"`
	ShutdownTimeoutSeconds int64         `mapstructure:"shutdown_timeout_seconds"`
	ShutdownTimeout        time.Duration `mapstructure:"-"`
}

// Addr returns the host:port pair for net/http.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// CrawlerConfig sizes the two worker pools of a crawl run.
type CrawlerConfig struct {
	ListingWorkers int `mapstructure:"listing_workers"`
	ArticleWorkers int `mapstructure:"article_workers"`
}

// FetchConfig holds per-request timeouts toward the forum.
type FetchConfig struct {
	TimeoutSeconds      int64         `mapstructure:"timeout_seconds"`
	IndexTimeoutSeconds int64         `mapstructure:"index_timeout_seconds"`
	Timeout             time.Duration `mapstructure:"-"`
	IndexTimeout        time.Duration `mapstructure:"-"`
}

// LocatorConfig tunes the start-page search.
type LocatorConfig struct {
	EarlyExit bool `mapstructure:"early_exit"`
}

// StreamConfig tunes what is written to clients.
type StreamConfig struct {
	EmitItemErrors      bool          `mapstructure:"emit_item_errors"`
	WriteTimeoutSeconds int64         `mapstructure:"write_timeout_seconds"`
	WriteTimeout        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
// An optional YAML file is read from path, or from BOARDCRAWLER_CONFIG when path is empty.
func Load(path string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("BOARDCRAWLER_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "samvad-board-crawler")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("providers_file", "")
	v.SetDefault("publishers_file", "")

	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 5000)
	v.SetDefault("http.shutdown_timeout_seconds", 10)

	v.SetDefault("crawler.listing_workers", 5)
	v.SetDefault("crawler.article_workers", 5)

	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.index_timeout_seconds", 3)

	v.SetDefault("locator.early_exit", false)

	v.SetDefault("stream.emit_item_errors", true)
	v.SetDefault("stream.write_timeout_seconds", 10)

	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/windows.db")
	v.SetDefault("storage_ttl_seconds", int64((6*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((time.Hour)/time.Second))
}

// normalize validates numeric knobs and derives durations.
func (c *Config) normalize() error {
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("invalid http.port (must be positive)")
	}
	if c.HTTP.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http.shutdown_timeout_seconds (must be positive seconds)")
	}
	c.HTTP.ShutdownTimeout = time.Duration(c.HTTP.ShutdownTimeoutSeconds) * time.Second

	if c.Crawler.ListingWorkers <= 0 {
		return fmt.Errorf("invalid crawler.listing_workers (must be >= 1)")
	}
	if c.Crawler.ArticleWorkers <= 0 {
		return fmt.Errorf("invalid crawler.article_workers (must be >= 1)")
	}

	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid fetch.timeout_seconds (must be positive seconds)")
	}
	if c.Fetch.IndexTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid fetch.index_timeout_seconds (must be positive seconds)")
	}
	c.Fetch.Timeout = time.Duration(c.Fetch.TimeoutSeconds) * time.Second
	c.Fetch.IndexTimeout = time.Duration(c.Fetch.IndexTimeoutSeconds) * time.Second

	if c.Stream.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid stream.write_timeout_seconds (must be positive seconds)")
	}
	c.Stream.WriteTimeout = time.Duration(c.Stream.WriteTimeoutSeconds) * time.Second

	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	return nil
}
