// Package config loads siphon's configuration from a YAML file and
// SIPHON_-prefixed environment variables, with env taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/siphon/internal/chunk"
	"github.com/FranksOps/siphon/internal/embed"
	"github.com/FranksOps/siphon/internal/scraper"
)

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Storage   StorageConfig   `mapstructure:"storage"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

type CrawlConfig struct {
	MaxPages      int      `mapstructure:"max_pages"`
	RateLimitMS   int      `mapstructure:"rate_limit_ms"`
	PageTimeoutMS int      `mapstructure:"page_timeout_ms"`
	RespectRobots bool     `mapstructure:"respect_robots"`
	DetectSitemap bool     `mapstructure:"detect_sitemap"`
	Include       []string `mapstructure:"include"`
	Exclude       []string `mapstructure:"exclude"`
	Contact       string   `mapstructure:"contact"`
	Concurrency   int      `mapstructure:"concurrency"`
	// AllowPrivate disables the private address guard. Only for self-hosted
	// single-tenant installs crawling their own network.
	AllowPrivate bool `mapstructure:"allow_private"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres | sqlite
	DSN    string `mapstructure:"dsn"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type ChunkingConfig struct {
	TokenLimit int `mapstructure:"token_limit"`
	Overlap    int `mapstructure:"overlap"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type AnalyticsConfig struct {
	// Path of the SQLite analytics event log; empty disables analytics.
	Path string `mapstructure:"path"`
}

// Load reads configuration. An explicit path must exist; otherwise a
// siphon.yaml in the working directory is used when present, and defaults
// plus environment variables apply either way.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIPHON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("siphon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		_ = v.ReadInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("crawl.max_pages", scraper.DefaultMaxPages)
	v.SetDefault("crawl.rate_limit_ms", 1000)
	v.SetDefault("crawl.page_timeout_ms", 30000)
	v.SetDefault("crawl.respect_robots", true)
	v.SetDefault("crawl.detect_sitemap", true)
	v.SetDefault("crawl.concurrency", 4)
	v.SetDefault("crawl.allow_private", false)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "siphon.db")

	v.SetDefault("openai.model", embed.DefaultModel)

	v.SetDefault("chunking.token_limit", chunk.DefaultTokenLimit)
	v.SetDefault("chunking.overlap", chunk.DefaultOverlap)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

// Options builds per-crawl scraper options from the crawl section.
func (c CrawlConfig) Options(workspaceID, botID, rootURL string) scraper.Options {
	opts := scraper.DefaultOptions(workspaceID, rootURL)
	opts.BotID = botID
	opts.MaxPages = c.MaxPages
	opts.RateLimit = time.Duration(c.RateLimitMS) * time.Millisecond
	opts.PageTimeout = time.Duration(c.PageTimeoutMS) * time.Millisecond
	opts.IncludePatterns = c.Include
	opts.ExcludePatterns = c.Exclude
	opts.RespectRobots = c.RespectRobots
	opts.DetectSitemap = c.DetectSitemap
	opts.Contact = c.Contact
	return opts
}
