// Package config loads and validates service configuration. Settings come
// from defaults, an optional YAML config file, and ONBOARDER_-prefixed
// environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved service configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SchedulerConfig bounds pipeline concurrency.
type SchedulerConfig struct {
	MaxConcurrentJobs  int `mapstructure:"max_concurrent_jobs"`
	MaxConcurrentNodes int `mapstructure:"max_concurrent_nodes"`
	QueueCapacity      int `mapstructure:"queue_capacity"`
}

// RetryConfig shapes the node retry schedule.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// CrawlerConfig tunes fetching and context building.
type CrawlerConfig struct {
	UserAgent          string        `mapstructure:"user_agent"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	Concurrency        int           `mapstructure:"concurrency"`
	RateLimitPerDomain int           `mapstructure:"rate_limit_per_domain"`
	MaxPageBytes       int           `mapstructure:"max_page_bytes"`
}

// HeadlessConfig tunes the chromedp renderer and its promotion detector.
type HeadlessConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	RenderTimeout  time.Duration `mapstructure:"render_timeout"`
	DomainQPS      float64       `mapstructure:"domain_qps"`
	MinHTMLBytes   int           `mapstructure:"min_html_bytes"`
	SPAKeywords    []string      `mapstructure:"spa_keywords"`
}

// ExtractorConfig configures the Anthropic-backed extraction adapter.
type ExtractorConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the job store backend.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Load reads configuration from the given file path (optional), the standard
// search paths, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ONBOARDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/onboarder/")
		v.AddConfigPath("$HOME/.onboarder")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing file on the search path is fine; an explicit path or
		// a parse failure is not.
		if path != "" {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Scheduler.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("scheduler.max_concurrent_jobs must be > 0, got %d", c.Scheduler.MaxConcurrentJobs)
	}
	if c.Scheduler.MaxConcurrentNodes <= 0 {
		return fmt.Errorf("scheduler.max_concurrent_nodes must be > 0, got %d", c.Scheduler.MaxConcurrentNodes)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry delays invalid: base %s, max %s", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0, got %d", c.Crawler.Concurrency)
	}
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", "60s")

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")

	v.SetDefault("scheduler.max_concurrent_jobs", 4)
	v.SetDefault("scheduler.max_concurrent_nodes", 8)
	v.SetDefault("scheduler.queue_capacity", 256)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "5s")
	v.SetDefault("retry.max_delay", "30s")

	const defaultUA = "RoomSage-Onboarder/1.0 (+https://github.com/roomsage/onboarder)"
	v.SetDefault("crawler.user_agent", defaultUA)
	v.SetDefault("crawler.request_timeout", "15s")
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.rate_limit_per_domain", 2)
	v.SetDefault("crawler.max_page_bytes", 5*1024*1024)

	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_concurrency", 2)
	v.SetDefault("headless.render_timeout", "15s")
	v.SetDefault("headless.domain_qps", 0.5)
	v.SetDefault("headless.min_html_bytes", 2000)
	v.SetDefault("headless.spa_keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"ng-app",
		"window.__APOLLO_STATE__",
	})

	v.SetDefault("extractor.model", "claude-sonnet-4-20250514")
	v.SetDefault("extractor.max_tokens", 8192)
	v.SetDefault("extractor.temperature", 0.0)
	v.SetDefault("extractor.timeout", "120s")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.postgres_dsn", "")
}
