// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STEAMSENT_SERVER_PORT.
const EnvPrefix = "STEAMSENT"

// Storage backends.
const (
	BackendLocal    = "local"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Steam    SteamConfig    `mapstructure:"steam"`
	Reviews  ReviewsConfig  `mapstructure:"reviews"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Trending TrendingConfig `mapstructure:"trending"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	ShutdownSeconds       int `mapstructure:"shutdown_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SteamConfig points the upstream client at its endpoints and paces it.
type SteamConfig struct {
	StoreBaseURL      string  `mapstructure:"store_base_url"`
	ReviewsBaseURL    string  `mapstructure:"reviews_base_url"`
	SteamSpyBaseURL   string  `mapstructure:"steamspy_base_url"`
	Language          string  `mapstructure:"language"`
	CountryCode       string  `mapstructure:"country_code"`
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	// SteamSpyRequestsPerSecond paces the SteamSpy host separately.
	SteamSpyRequestsPerSecond float64 `mapstructure:"steamspy_requests_per_second"`
}

// ReviewsConfig holds the review collector's hard limits.
type ReviewsConfig struct {
	PageSize   int `mapstructure:"page_size"`
	MaxPages   int `mapstructure:"max_pages"`
	MaxReviews int `mapstructure:"max_reviews"`
}

// CrawlerConfig governs the background sweep.
type CrawlerConfig struct {
	MaxGames          int  `mapstructure:"max_games"`
	MaxReviewsPerGame int  `mapstructure:"max_reviews_per_game"`
	DelayMs           int  `mapstructure:"delay_ms"`
	AutoStart         bool `mapstructure:"auto_start"`
}

// TrendingConfig tunes the trending pipeline.
type TrendingConfig struct {
	ListSize          int `mapstructure:"list_size"`
	DetailConcurrency int `mapstructure:"detail_concurrency"`
	MaxCandidates     int `mapstructure:"max_candidates"`
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	LocalDir   string `mapstructure:"local_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	GCSPrefix  string `mapstructure:"gcs_prefix"`
}

// DBConfig controls access to the Postgres document table.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications. Publishing
// is disabled when ProjectID is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load builds a Config from disk/environment.
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
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("server.shutdown_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("steam.store_base_url", "https://store.steampowered.com")
	v.SetDefault("steam.reviews_base_url", "https://store.steampowered.com")
	v.SetDefault("steam.steamspy_base_url", "https://steamspy.com/api.php")
	v.SetDefault("steam.language", "english")
	v.SetDefault("steam.country_code", "us")
	v.SetDefault("steam.user_agent", "steam-sentiment/0.1")
	v.SetDefault("steam.timeout_seconds", 20)
	v.SetDefault("steam.requests_per_second", 4)
	v.SetDefault("steam.burst", 2)
	v.SetDefault("steam.steamspy_requests_per_second", 1)
	v.SetDefault("reviews.page_size", 100)
	v.SetDefault("reviews.max_pages", 1500)
	v.SetDefault("reviews.max_reviews", 100000)
	v.SetDefault("crawler.max_games", 500)
	v.SetDefault("crawler.max_reviews_per_game", 5000)
	v.SetDefault("crawler.delay_ms", 120)
	v.SetDefault("crawler.auto_start", false)
	v.SetDefault("trending.list_size", 12)
	v.SetDefault("trending.detail_concurrency", 4)
	v.SetDefault("trending.max_candidates", 60)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.sqlite_path", "data/steam-sentiment.db")
	v.SetDefault("storage.gcs_prefix", "steam-sentiment")
	v.SetDefault("db.table", "documents")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.topic_name", "steam-sentiment-events")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Steam.TimeoutSeconds <= 0 {
		return fmt.Errorf("steam.timeout_seconds must be > 0")
	}
	if c.Steam.RequestsPerSecond < 0 {
		return fmt.Errorf("steam.requests_per_second must be >= 0")
	}
	if c.Steam.SteamSpyRequestsPerSecond < 0 {
		return fmt.Errorf("steam.steamspy_requests_per_second must be >= 0")
	}
	if c.Reviews.PageSize <= 0 || c.Reviews.PageSize > 100 {
		return fmt.Errorf("reviews.page_size must be between 1 and 100")
	}
	if c.Reviews.MaxPages <= 0 {
		return fmt.Errorf("reviews.max_pages must be > 0")
	}
	if c.Reviews.MaxReviews <= 0 {
		return fmt.Errorf("reviews.max_reviews must be > 0")
	}
	if c.Crawler.MaxGames <= 0 {
		return fmt.Errorf("crawler.max_games must be > 0")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Trending.ListSize <= 0 {
		return fmt.Errorf("trending.list_size must be > 0")
	}
	if c.Trending.DetailConcurrency <= 0 {
		return fmt.Errorf("trending.detail_concurrency must be > 0")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path must be set for the sqlite backend")
		}
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

// SteamTimeout is the per-request upstream timeout.
func (c Config) SteamTimeout() time.Duration {
	return time.Duration(c.Steam.TimeoutSeconds) * time.Second
}

// CrawlDelay is the pause between titles in a background sweep.
func (c Config) CrawlDelay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// RequestTimeout bounds each HTTP request; zero disables the limit.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownSeconds) * time.Second
}
