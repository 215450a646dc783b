// Package config loads and validates crawler and API configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob for the crawl and serving halves. Values come
// from defaults, an optional config file, and BOOKS_-prefixed environment
// variables, in increasing precedence.
type Config struct {
	Crawler   CrawlerConfig  `mapstructure:"crawler"`
	Selectors SelectorConfig `mapstructure:"selectors"`
	Output    OutputConfig   `mapstructure:"output"`
	Server    ServerConfig   `mapstructure:"server"`
}

// CrawlerConfig governs the pagination walk.
type CrawlerConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	MaxPages           int           `mapstructure:"max_pages"`
	Delay              time.Duration `mapstructure:"delay"`
	Timeout            time.Duration `mapstructure:"timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
	Verbose            bool          `mapstructure:"verbose"`
	VisitedCacheSize   int           `mapstructure:"visited_cache_size"`
	PipelineBufferSize int           `mapstructure:"pipeline_buffer_size"`
	BatchSize          int           `mapstructure:"batch_size"`
}

// SelectorConfig is the markup contract with the origin site. Changing the
// catalog's vocabulary means changing these values, not the walker.
type SelectorConfig struct {
	Item          string         `mapstructure:"item"`
	TitleAnchor   string         `mapstructure:"title_anchor"`
	Price         string         `mapstructure:"price"`
	Rating        string         `mapstructure:"rating"`
	Availability  string         `mapstructure:"availability"`
	Image         string         `mapstructure:"image"`
	NextLink      string         `mapstructure:"next_link"`
	InStockPhrase string         `mapstructure:"in_stock_phrase"`
	RatingWords   map[string]int `mapstructure:"rating_words"`
}

// OutputConfig sets where and how the crawl persists its dataset.
type OutputConfig struct {
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"` // csv, json, or dual
}

// ServerConfig controls the query API process.
type ServerConfig struct {
	Addr           string            `mapstructure:"addr"`
	DataFile       string            `mapstructure:"data_file"`
	AuthEnabled    bool              `mapstructure:"auth_enabled"`
	Users          map[string]string `mapstructure:"users"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// Load builds a Config from defaults, the optional file at path, and the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults are static and known to unmarshal.
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", "https://books.toscrape.com/")
	v.SetDefault("crawler.max_pages", 50)
	v.SetDefault("crawler.delay", time.Second)
	v.SetDefault("crawler.timeout", 10*time.Second)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36")
	v.SetDefault("crawler.metrics_addr", "")
	v.SetDefault("crawler.verbose", false)
	v.SetDefault("crawler.visited_cache_size", 4096)
	v.SetDefault("crawler.pipeline_buffer_size", 512)
	v.SetDefault("crawler.batch_size", 64)

	v.SetDefault("selectors.item", "article.product_pod")
	v.SetDefault("selectors.title_anchor", "h3 a")
	v.SetDefault("selectors.price", "p.price_color")
	v.SetDefault("selectors.rating", "p.star-rating")
	v.SetDefault("selectors.availability", "p.instock.availability")
	v.SetDefault("selectors.image", "img")
	v.SetDefault("selectors.next_link", "li.next a")
	v.SetDefault("selectors.in_stock_phrase", "In stock")
	v.SetDefault("selectors.rating_words", map[string]int{
		"One": 1, "Two": 2, "Three": 3, "Four": 4, "Five": 5,
	})

	v.SetDefault("output.file", "data/books.csv")
	v.SetDefault("output.format", "csv")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.data_file", "data/books.csv")
	v.SetDefault("server.auth_enabled", true)
	// Demo credentials, override in deployment via config file or
	// BOOKS_SERVER_USERS.
	v.SetDefault("server.users", map[string]string{"admin": "adminpass"})
	v.SetDefault("server.request_timeout", 60*time.Second)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsed, err := url.Parse(c.Crawler.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Crawler.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Crawler.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Crawler.VisitedCacheSize <= 0 {
		return fmt.Errorf("visited cache size must be positive")
	}
	if c.Crawler.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	if c.Selectors.Item == "" {
		return fmt.Errorf("item selector cannot be empty")
	}
	if c.Selectors.TitleAnchor == "" {
		return fmt.Errorf("title anchor selector cannot be empty")
	}
	if c.Selectors.NextLink == "" {
		return fmt.Errorf("next link selector cannot be empty")
	}
	if c.Selectors.InStockPhrase == "" {
		return fmt.Errorf("in-stock phrase cannot be empty")
	}

	if c.Output.File == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.Output.Format != "csv" && c.Output.Format != "json" && c.Output.Format != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server addr cannot be empty")
	}
	if c.Server.DataFile == "" {
		return fmt.Errorf("server data file cannot be empty")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}
	if c.Server.AuthEnabled && len(c.Server.Users) == 0 {
		return fmt.Errorf("auth enabled but no users configured")
	}
	return nil
}
