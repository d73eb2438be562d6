// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	DB       DBConfig       `mapstructure:"db"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Download DownloadConfig `mapstructure:"download"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// CatalogConfig controls the catalog API client.
type CatalogConfig struct {
	MainBaseURL    string `mapstructure:"main_base_url"`
	PanoBaseURL    string `mapstructure:"pano_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CrawlConfig governs pipeline behavior: pool width, stage toggles, and the
// fan-out caps that keep a full-catalog run bounded.
type CrawlConfig struct {
	Workers              int     `mapstructure:"workers"`
	PageSize             int     `mapstructure:"page_size"`
	PhotoBatchSize       int     `mapstructure:"photo_batch_size"`
	ModelsPerBrand       int     `mapstructure:"models_per_brand"`
	MaxPhotoCombinations int     `mapstructure:"max_photo_combinations"`
	MaxColors            int     `mapstructure:"max_colors"`
	ParseModes           []int   `mapstructure:"parse_modes"`
	ForceReparse         bool    `mapstructure:"force_reparse"`
	SeriesIDs            []int64 `mapstructure:"series_ids"`

	ParseCharacteristics bool `mapstructure:"parse_characteristics"`
	ParsePhotos          bool `mapstructure:"parse_photos"`
	DownloadPhotos       bool `mapstructure:"download_photos"`
	ParsePanoramas       bool `mapstructure:"parse_panoramas"`
	DownloadPanoramas    bool `mapstructure:"download_panoramas"`

	PanoramaOnly       bool    `mapstructure:"panorama_only"`
	PanoramaCategories []int64 `mapstructure:"panorama_categories"`
}

// DownloadConfig sets where assets land and how patient fetches are.
type DownloadConfig struct {
	ImageDir string `mapstructure:"image_dir"`
	// TimeoutFactor multiplies the catalog timeout: image bodies are much
	// larger than JSON payloads.
	TimeoutFactor int `mapstructure:"timeout_factor"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTOCRAWL")
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
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("catalog.timeout_seconds", 3)
	v.SetDefault("crawl.workers", 4)
	v.SetDefault("crawl.page_size", 50)
	v.SetDefault("crawl.photo_batch_size", 200)
	v.SetDefault("crawl.parse_modes", []int{1})
	v.SetDefault("crawl.parse_characteristics", true)
	v.SetDefault("crawl.parse_photos", true)
	v.SetDefault("crawl.download_photos", true)
	v.SetDefault("crawl.parse_panoramas", true)
	v.SetDefault("crawl.download_panoramas", true)
	v.SetDefault("download.image_dir", "img")
	v.SetDefault("download.timeout_factor", 3)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be > 0")
	}
	if c.Crawl.PageSize <= 0 {
		return fmt.Errorf("crawl.page_size must be > 0")
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		return fmt.Errorf("catalog.timeout_seconds must be > 0")
	}
	if c.Download.ImageDir == "" {
		return fmt.Errorf("download.image_dir must be set")
	}
	if c.Download.TimeoutFactor <= 0 {
		return fmt.Errorf("download.timeout_factor must be > 0")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	if len(c.Crawl.ParseModes) == 0 {
		return fmt.Errorf("crawl.parse_modes must not be empty")
	}
	return nil
}

// CatalogTimeout is the per-call budget for JSON endpoints.
func (c Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// DownloadTimeout is the per-asset budget for image fetches.
func (c Config) DownloadTimeout() time.Duration {
	return c.CatalogTimeout() * time.Duration(c.Download.TimeoutFactor)
}

// ConnLifetime is the max age of one pooled database connection.
func (c Config) ConnLifetime() time.Duration {
	return time.Duration(c.DB.ConnLifetimeMin) * time.Minute
}
