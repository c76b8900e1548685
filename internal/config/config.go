// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. HARVESTER_EXTRACT_WORKERS.
const EnvPrefix = "HARVESTER"

// Storage backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sitemap  SitemapConfig  `mapstructure:"sitemap"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SitemapConfig governs sitemap fetching and the URL store.
type SitemapConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	InsecureTLS    bool   `mapstructure:"insecure_tls"`
	UserAgent      string `mapstructure:"user_agent"`
	StorePath      string `mapstructure:"store_path"`
}

// ExtractConfig governs the browser worker pool.
type ExtractConfig struct {
	Workers           int    `mapstructure:"workers"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	TextSelector      string `mapstructure:"text_selector"`
	Offset            int    `mapstructure:"offset"`
	Limit             int    `mapstructure:"limit"`
	UniqueFilenames   bool   `mapstructure:"unique_filenames"`
	Headless          bool   `mapstructure:"headless"`
	NoSandbox         bool   `mapstructure:"no_sandbox"`
	UserAgent         string `mapstructure:"user_agent"`
}

// OutputConfig sets artifact locations relative to the blob store root.
type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	ScreenshotsDir string `mapstructure:"screenshots_dir"`
	ArticlesDir    string `mapstructure:"articles_dir"`
	DatasetFile    string `mapstructure:"dataset_file"`
}

// StorageConfig selects the artifact backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DatabaseConfig enables the optional dataset mirror.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
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

// Every key needs a default, even an empty one, for AutomaticEnv to reach
// it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("sitemap.timeout_seconds", 15)
	v.SetDefault("sitemap.insecure_tls", true)
	v.SetDefault("sitemap.user_agent", "")
	v.SetDefault("sitemap.store_path", "urls.csv")
	v.SetDefault("extract.workers", 3)
	v.SetDefault("extract.nav_timeout_seconds", 30)
	v.SetDefault("extract.text_selector", "body")
	v.SetDefault("extract.offset", 0)
	v.SetDefault("extract.limit", 0)
	v.SetDefault("extract.unique_filenames", true)
	v.SetDefault("extract.headless", true)
	v.SetDefault("extract.no_sandbox", false)
	v.SetDefault("extract.user_agent", "")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.screenshots_dir", "screenshots")
	v.SetDefault("output.articles_dir", "articles")
	v.SetDefault("output.dataset_file", "article_text.csv")
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "extractions")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("metrics.listen_addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Sitemap.TimeoutSeconds <= 0 {
		return fmt.Errorf("sitemap.timeout_seconds must be > 0")
	}
	if c.Extract.Workers <= 0 {
		return fmt.Errorf("extract.workers must be > 0")
	}
	if c.Extract.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("extract.nav_timeout_seconds must be > 0")
	}
	if c.Extract.Offset < 0 {
		return fmt.Errorf("extract.offset must be >= 0")
	}
	if c.Extract.Limit < 0 {
		return fmt.Errorf("extract.limit must be >= 0")
	}
	if strings.TrimSpace(c.Extract.TextSelector) == "" {
		return fmt.Errorf("extract.text_selector must be set")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Output.Dir) == "" {
			return fmt.Errorf("output.dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q is not one of local, gcs, memory", c.Storage.Backend)
	}
	return nil
}

// SitemapTimeout converts the fetch timeout into a duration.
func (c Config) SitemapTimeout() time.Duration {
	return time.Duration(c.Sitemap.TimeoutSeconds) * time.Second
}

// NavigationTimeout converts the per-page timeout into a duration.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Extract.NavTimeoutSeconds) * time.Second
}
