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
	Logging  LoggingConfig  `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Patterns PatternsConfig `mapstructure:"patterns"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
}

// LoggingConfig selects zap mode, level, and production sampling.
type LoggingConfig struct {
	Development      bool   `mapstructure:"development"`
	Level            string `mapstructure:"level"`
	SampleInitial    int    `mapstructure:"sample_initial"`
	SampleThereafter int    `mapstructure:"sample_thereafter"`
}

// CrawlerConfig governs the audit pipeline and per-host politeness.
type CrawlerConfig struct {
	UserAgent             string  `mapstructure:"user_agent"`
	Concurrency           int     `mapstructure:"concurrency"`
	BatchSize             int     `mapstructure:"batch_size"`
	TimeoutSeconds        int     `mapstructure:"timeout_seconds"`
	PerHostMaxPages       int     `mapstructure:"per_host_max_pages"`
	MaxConsecutiveErrors  int     `mapstructure:"max_consecutive_errors"`
	DelayBaseSeconds      float64 `mapstructure:"delay_base_seconds"`
	DelayJitterSeconds    float64 `mapstructure:"delay_jitter_seconds"`
	BackoffInitialSeconds float64 `mapstructure:"backoff_initial_seconds"`
	BackoffCapSeconds     float64 `mapstructure:"backoff_cap_seconds"`
	RobotsCacheSeconds    int     `mapstructure:"robots_cache_seconds"`
	FailAlertPct          float64 `mapstructure:"fail_alert_pct"`
}

// HeadlessConfig configures the optional chromedp rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	SettleMs      int     `mapstructure:"settle_ms"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
}

// PatternsConfig points at the three fingerprint rule files.
type PatternsConfig struct {
	PMSFile        string `mapstructure:"pms_file"`
	ThirdPartyFile string `mapstructure:"third_party_file"`
	PhoneFile      string `mapstructure:"phone_file"`
}

// OpsConfig controls the optional metrics/health listener.
type OpsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// EnrichConfig configures the job-posting search enrichment step.
type EnrichConfig struct {
	Provider      string  `mapstructure:"provider"`
	Endpoint      string  `mapstructure:"endpoint"`
	APIKey        string  `mapstructure:"api_key"`
	QueriesPerSec float64 `mapstructure:"queries_per_sec"`
	ResultCount   int     `mapstructure:"result_count"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ODMS")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.sample_initial", 100)
	v.SetDefault("logging.sample_thereafter", 100)
	v.SetDefault("crawler.user_agent", "FlexAuditBot/1.0 (+https://example.com/contact; mailto:ops@example.com)")
	v.SetDefault("crawler.concurrency", 10)
	v.SetDefault("crawler.batch_size", 150)
	v.SetDefault("crawler.timeout_seconds", 20)
	v.SetDefault("crawler.per_host_max_pages", 5)
	v.SetDefault("crawler.max_consecutive_errors", 3)
	v.SetDefault("crawler.delay_base_seconds", 1.0)
	v.SetDefault("crawler.delay_jitter_seconds", 1.0)
	v.SetDefault("crawler.backoff_initial_seconds", 2.0)
	v.SetDefault("crawler.backoff_cap_seconds", 60.0)
	v.SetDefault("crawler.robots_cache_seconds", 3600)
	v.SetDefault("crawler.fail_alert_pct", 15.0)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 15)
	v.SetDefault("headless.settle_ms", 500)
	v.SetDefault("headless.domain_qps", 0.5)
	v.SetDefault("patterns.pms_file", "patterns/pms_patterns.yaml")
	v.SetDefault("patterns.third_party_file", "patterns/third_party_patterns.yaml")
	v.SetDefault("patterns.phone_file", "patterns/phone_patterns.yaml")
	v.SetDefault("enrich.provider", "bing")
	v.SetDefault("enrich.queries_per_sec", 2.5)
	v.SetDefault("enrich.result_count", 5)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Logging.SampleInitial < 0 || c.Logging.SampleThereafter < 0 {
		return fmt.Errorf("logging sampling values must be >= 0")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.PerHostMaxPages <= 0 {
		return fmt.Errorf("crawler.per_host_max_pages must be > 0")
	}
	if c.Crawler.MaxConsecutiveErrors <= 0 {
		return fmt.Errorf("crawler.max_consecutive_errors must be > 0")
	}
	if c.Crawler.DelayBaseSeconds < 0 || c.Crawler.DelayJitterSeconds < 0 {
		return fmt.Errorf("crawler delay values must be >= 0")
	}
	if c.Crawler.BackoffInitialSeconds <= 0 || c.Crawler.BackoffCapSeconds < c.Crawler.BackoffInitialSeconds {
		return fmt.Errorf("crawler backoff values must satisfy 0 < initial <= cap")
	}
	if c.Crawler.RobotsCacheSeconds <= 0 {
		return fmt.Errorf("crawler.robots_cache_seconds must be > 0")
	}
	if c.Crawler.FailAlertPct < 0 || c.Crawler.FailAlertPct > 100 {
		return fmt.Errorf("crawler.fail_alert_pct must be in [0,100]")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Patterns.PMSFile == "" || c.Patterns.ThirdPartyFile == "" || c.Patterns.PhoneFile == "" {
		return fmt.Errorf("patterns files must all be set")
	}
	if c.Enrich.Provider != "bing" && c.Enrich.Provider != "serpapi" {
		return fmt.Errorf("enrich.provider must be bing or serpapi")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c CrawlerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RobotsCacheDuration returns the robots.txt freshness window.
func (c CrawlerConfig) RobotsCacheDuration() time.Duration {
	return time.Duration(c.RobotsCacheSeconds) * time.Second
}

// DelayBase returns the baseline inter-request delay.
func (c CrawlerConfig) DelayBase() time.Duration {
	return time.Duration(c.DelayBaseSeconds * float64(time.Second))
}

// DelayJitter returns the upper bound of the uniform jitter added to DelayBase.
func (c CrawlerConfig) DelayJitter() time.Duration {
	return time.Duration(c.DelayJitterSeconds * float64(time.Second))
}

// BackoffInitial returns the first backoff step applied after a throttle.
func (c CrawlerConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialSeconds * float64(time.Second))
}

// BackoffCap returns the backoff ceiling.
func (c CrawlerConfig) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapSeconds * float64(time.Second))
}

// NavTimeout returns the headless navigation deadline.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// SettleWait returns the post-navigation network-quiet wait budget.
func (c HeadlessConfig) SettleWait() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}
