package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 10, cfg.Crawler.Concurrency)
	require.Equal(t, 150, cfg.Crawler.BatchSize)
	require.Equal(t, 5, cfg.Crawler.PerHostMaxPages)
	require.Equal(t, 3, cfg.Crawler.MaxConsecutiveErrors)
	require.Equal(t, 15.0, cfg.Crawler.FailAlertPct)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, 100, cfg.Logging.SampleInitial)
	require.False(t, cfg.Headless.Enabled)
	require.Equal(t, "bing", cfg.Enrich.Provider)
	require.NotEmpty(t, cfg.Crawler.UserAgent)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  user_agent: test-agent
  concurrency: 4
  batch_size: 25
  timeout_seconds: 10
  delay_base_seconds: 0.5
  backoff_cap_seconds: 30
headless:
  enabled: true
  max_parallel: 1
  nav_timeout_seconds: 12
patterns:
  pms_file: rules/pms.yaml
enrich:
  provider: serpapi
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "test-agent", cfg.Crawler.UserAgent)
	require.Equal(t, 4, cfg.Crawler.Concurrency)
	require.Equal(t, 25, cfg.Crawler.BatchSize)
	require.True(t, cfg.Headless.Enabled)
	require.Equal(t, "rules/pms.yaml", cfg.Patterns.PMSFile)
	require.Equal(t, "serpapi", cfg.Enrich.Provider)
	// Untouched keys keep their defaults.
	require.Equal(t, 3600, cfg.Crawler.RobotsCacheSeconds)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative log sampling", func(c *Config) { c.Logging.SampleInitial = -1 }},
		{"empty user agent", func(c *Config) { c.Crawler.UserAgent = "" }},
		{"zero concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }},
		{"negative batch size", func(c *Config) { c.Crawler.BatchSize = -1 }},
		{"zero timeout", func(c *Config) { c.Crawler.TimeoutSeconds = 0 }},
		{"zero page budget", func(c *Config) { c.Crawler.PerHostMaxPages = 0 }},
		{"zero error threshold", func(c *Config) { c.Crawler.MaxConsecutiveErrors = 0 }},
		{"negative delay", func(c *Config) { c.Crawler.DelayBaseSeconds = -1 }},
		{"cap below initial backoff", func(c *Config) { c.Crawler.BackoffCapSeconds = 1 }},
		{"zero robots cache", func(c *Config) { c.Crawler.RobotsCacheSeconds = 0 }},
		{"alert pct out of range", func(c *Config) { c.Crawler.FailAlertPct = 120 }},
		{"headless without parallelism", func(c *Config) { c.Headless.Enabled = true; c.Headless.MaxParallel = 0 }},
		{"missing pattern file", func(c *Config) { c.Patterns.PhoneFile = "" }},
		{"unknown enrich provider", func(c *Config) { c.Enrich.Provider = "altavista" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	c := CrawlerConfig{
		TimeoutSeconds:        20,
		RobotsCacheSeconds:    3600,
		DelayBaseSeconds:      1.5,
		DelayJitterSeconds:    0.5,
		BackoffInitialSeconds: 2,
		BackoffCapSeconds:     60,
	}
	require.Equal(t, 20*time.Second, c.RequestTimeout())
	require.Equal(t, time.Hour, c.RobotsCacheDuration())
	require.Equal(t, 1500*time.Millisecond, c.DelayBase())
	require.Equal(t, 500*time.Millisecond, c.DelayJitter())
	require.Equal(t, 2*time.Second, c.BackoffInitial())
	require.Equal(t, time.Minute, c.BackoffCap())

	h := HeadlessConfig{NavTimeoutSec: 15, SettleMs: 500}
	require.Equal(t, 15*time.Second, h.NavTimeout())
	require.Equal(t, 500*time.Millisecond, h.SettleWait())
}
