// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/extract"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

// Browser drivers.
const (
	DriverChromedp = "chromedp"
	DriverColly    = "colly"
	DriverOffline  = "offline"
)

// Config captures every knob loaded via Viper.
type Config struct {
	Scrape    ScrapeConfig      `mapstructure:"scrape"`
	Browser   BrowserConfig     `mapstructure:"browser"`
	Selectors extract.Selectors `mapstructure:"selectors"`
	Output    OutputConfig      `mapstructure:"output"`
	Server    ServerConfig      `mapstructure:"server"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Tracing   TracingConfig     `mapstructure:"tracing"`
}

// ScrapeConfig holds the per-run options.
type ScrapeConfig struct {
	Mode                     string   `mapstructure:"mode"`
	Hashtags                 []string `mapstructure:"hashtags"`
	MaxResults               int      `mapstructure:"max_results"`
	IncludeVideoDetails      bool     `mapstructure:"include_video_details"`
	IncludeRelatedHashtags   bool     `mapstructure:"include_related_hashtags"`
	IncludeSentimentAnalysis bool     `mapstructure:"include_sentiment_analysis"`
	IncludeInfluencers       bool     `mapstructure:"include_influencers"`
	OutputFormat             string   `mapstructure:"output_format"`
	Concurrency              int      `mapstructure:"concurrency"`
	Seed                     int64    `mapstructure:"seed"`
}

// BrowserConfig selects and tunes the page fetcher.
type BrowserConfig struct {
	Driver            string  `mapstructure:"driver"`
	UserAgent         string  `mapstructure:"user_agent"`
	NavTimeoutSeconds int     `mapstructure:"nav_timeout_seconds"`
	MaxParallel       int     `mapstructure:"max_parallel"`
	BaseURL           string  `mapstructure:"base_url"`
	RatePerSecond     float64 `mapstructure:"rate_per_second"`
	Burst             int     `mapstructure:"burst"`
	RespectRobots     bool    `mapstructure:"respect_robots"`
}

// OutputConfig configures where finished runs are written.
type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	GCSBucket      string `mapstructure:"gcs_bucket"`
	GCSPrefix      string `mapstructure:"gcs_prefix"`
	PostgresDSN    string `mapstructure:"postgres_dsn"`
	PostgresTable  string `mapstructure:"postgres_table"`
	PubSubProject  string `mapstructure:"pubsub_project"`
	PubSubTopic    string `mapstructure:"pubsub_topic"`
	GCSContentType string `mapstructure:"gcs_content_type"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from defaults, an optional file and SCRAPER_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
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
	cfg.Scrape.Hashtags = hashtag.NormalizeAll(cfg.Scrape.Hashtags)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := hashtag.DefaultOptions()
	v.SetDefault("scrape.mode", string(def.Mode))
	v.SetDefault("scrape.hashtags", []string{})
	v.SetDefault("scrape.max_results", def.MaxResults)
	v.SetDefault("scrape.include_video_details", def.IncludeVideoDetails)
	v.SetDefault("scrape.include_related_hashtags", def.IncludeRelatedHashtags)
	v.SetDefault("scrape.include_sentiment_analysis", def.IncludeSentimentAnalysis)
	v.SetDefault("scrape.include_influencers", def.IncludeInfluencers)
	v.SetDefault("scrape.output_format", string(def.OutputFormat))
	v.SetDefault("scrape.concurrency", 4)
	v.SetDefault("scrape.seed", 0)

	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.base_url", "https://www.tiktok.com")
	v.SetDefault("browser.rate_per_second", 1.0)
	v.SetDefault("browser.burst", 1)
	v.SetDefault("browser.respect_robots", false)

	sel := extract.DefaultSelectors()
	v.SetDefault("selectors.trending_item", sel.TrendingItem)
	v.SetDefault("selectors.trending_name", sel.TrendingName)
	v.SetDefault("selectors.trending_views", sel.TrendingViews)
	v.SetDefault("selectors.trending_posts", sel.TrendingPosts)
	v.SetDefault("selectors.stat_nodes", sel.StatNodes)
	v.SetDefault("selectors.view_marker", sel.ViewMarker)
	v.SetDefault("selectors.posts_marker", sel.PostsMarker)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.gcs_prefix", "hashtags")
	v.SetDefault("output.gcs_content_type", "application/x-ndjson")
	v.SetDefault("output.postgres_dsn", "")
	v.SetDefault("output.postgres_table", "hashtag_records")
	v.SetDefault("output.pubsub_project", "")
	v.SetDefault("output.pubsub_topic", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "hashtag-scraper")
	v.SetDefault("tracing.project_id", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if !hashtag.Mode(c.Scrape.Mode).Valid() {
		return fmt.Errorf("scrape.mode: %w: %q", hashtag.ErrUnknownMode, c.Scrape.Mode)
	}
	if c.Scrape.MaxResults <= 0 {
		return fmt.Errorf("scrape.max_results must be > 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	switch hashtag.OutputFormat(c.Scrape.OutputFormat) {
	case hashtag.FormatJSON, hashtag.FormatCSV:
	default:
		return fmt.Errorf("scrape.output_format must be json or csv, got %q", c.Scrape.OutputFormat)
	}
	switch c.Browser.Driver {
	case DriverChromedp, DriverColly, DriverOffline:
	default:
		return fmt.Errorf("browser.driver must be chromedp, colly or offline, got %q", c.Browser.Driver)
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Browser.Driver == DriverChromedp && c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0 for the chromedp driver")
	}
	if c.Browser.RatePerSecond < 0 {
		return fmt.Errorf("browser.rate_per_second must be >= 0")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.PubSubTopic != "" && c.Output.PubSubProject == "" {
		return fmt.Errorf("output.pubsub_project must be set when output.pubsub_topic is set")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	return nil
}

// Options converts the scrape section into run options.
func (c Config) Options() hashtag.Options {
	s := c.Scrape
	return hashtag.Options{
		Mode:                     hashtag.Mode(s.Mode),
		Hashtags:                 append([]string(nil), s.Hashtags...),
		MaxResults:               s.MaxResults,
		IncludeVideoDetails:      s.IncludeVideoDetails,
		IncludeRelatedHashtags:   s.IncludeRelatedHashtags,
		IncludeSentimentAnalysis: s.IncludeSentimentAnalysis,
		IncludeInfluencers:       s.IncludeInfluencers,
		OutputFormat:             hashtag.OutputFormat(s.OutputFormat),
	}
}

// NavTimeout is the per-fetch budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSeconds) * time.Second
}
