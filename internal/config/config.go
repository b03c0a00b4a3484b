package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Site       SiteConfig       `yaml:"site" mapstructure:"site"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Selectors  SelectorsConfig  `yaml:"selectors" mapstructure:"selectors"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Normalize  NormalizeConfig  `yaml:"normalize" mapstructure:"normalize"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SiteConfig identifies the source site.
type SiteConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// CrawlConfig configures fetching and the period aggregator.
type CrawlConfig struct {
	ListingURLTemplate string `yaml:"listing_url_template" mapstructure:"listing_url_template"`
	StartYear          int    `yaml:"start_year" mapstructure:"start_year"`
	EndYear            int    `yaml:"end_year" mapstructure:"end_year"`
	MinDelayMs         int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts        int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	Workers            int    `yaml:"workers" mapstructure:"workers"`
	CacheTTLHours      int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	AppendYear         bool   `yaml:"append_year" mapstructure:"append_year"`
	Output             string `yaml:"output" mapstructure:"output"`
}

// Periods returns the configured years in ascending order.
func (c CrawlConfig) Periods() []int {
	if c.EndYear < c.StartYear {
		return nil
	}
	out := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		out = append(out, y)
	}
	return out
}

// SelectorsConfig points at an optional YAML overlay for the selector table.
type SelectorsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// EnrichConfig configures the enrichment stage.
type EnrichConfig struct {
	Input          string `yaml:"input" mapstructure:"input"`
	Output         string `yaml:"output" mapstructure:"output"`
	CheckpointPath string `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinDelayMs     int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxDelayMs     int    `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// NormalizeConfig configures the normalization stage.
type NormalizeConfig struct {
	Input          string   `yaml:"input" mapstructure:"input"`
	Output         string   `yaml:"output" mapstructure:"output"`
	MapPath        string   `yaml:"map_path" mapstructure:"map_path"`
	ReportPath     string   `yaml:"report_path" mapstructure:"report_path"`
	CheckpointPath string   `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
	BatchSize      int      `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens      int64    `yaml:"max_tokens" mapstructure:"max_tokens"`
	Fields         []string `yaml:"fields" mapstructure:"fields"`
}

// ResilienceConfig configures retries and the inference circuit breaker.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// StoreConfig configures the optional SQLite store. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Secs converts a seconds setting to a duration.
func Secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Millis converts a millisecond setting to a duration.
func Millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROUNDTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("site.base_url", "https://www.helixcenter.org/")
	v.SetDefault("site.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("crawl.listing_url_template", "https://www.helixcenter.org/roundtables/%d/")
	v.SetDefault("crawl.start_year", 2012)
	v.SetDefault("crawl.end_year", 2024)
	v.SetDefault("crawl.min_delay_ms", 1000)
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("crawl.max_attempts", 1)
	v.SetDefault("crawl.workers", 2)
	v.SetDefault("crawl.cache_ttl_hours", 24)
	v.SetDefault("crawl.append_year", false)
	v.SetDefault("crawl.output", "roundtables.json")
	v.SetDefault("selectors.path", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("enrich.input", "roundtables.json")
	v.SetDefault("enrich.output", "roundtables_cleaned.json")
	v.SetDefault("enrich.checkpoint_path", "roundtables_clean-intermediate.json")
	v.SetDefault("enrich.timeout_secs", 10)
	v.SetDefault("enrich.min_delay_ms", 1000)
	v.SetDefault("enrich.max_delay_ms", 2000)
	v.SetDefault("enrich.max_tokens", 500)
	v.SetDefault("normalize.input", "roundtables_cleaned.json")
	v.SetDefault("normalize.output", "roundtables_normed.json")
	v.SetDefault("normalize.map_path", "roundtables_norm_map.json")
	v.SetDefault("normalize.report_path", "roundtables_norm_report.txt")
	v.SetDefault("normalize.checkpoint_path", "roundtables_intermediate.json")
	v.SetDefault("normalize.batch_size", 50)
	v.SetDefault("normalize.timeout_secs", 60)
	v.SetDefault("normalize.max_tokens", 4096)
	v.SetDefault("normalize.fields", []string{"keywords", "institutions", "specialities"})
	v.SetDefault("resilience.max_attempts", 2)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("store.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it starts work.
func (c *Config) Validate(stage string) error {
	var problems []string

	switch stage {
	case "crawl":
		if c.Site.BaseURL == "" {
			problems = append(problems, "site.base_url is required")
		}
		if !strings.Contains(c.Crawl.ListingURLTemplate, "%d") {
			problems = append(problems, "crawl.listing_url_template must contain %d")
		}
		if c.Crawl.EndYear < c.Crawl.StartYear {
			problems = append(problems, "crawl.end_year must not precede crawl.start_year")
		}
		if c.Crawl.Workers < 1 {
			problems = append(problems, "crawl.workers must be at least 1")
		}
	case "enrich":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Enrich.CheckpointPath == "" {
			problems = append(problems, "enrich.checkpoint_path is required")
		}
		if c.Enrich.MaxDelayMs < c.Enrich.MinDelayMs {
			problems = append(problems, "enrich.max_delay_ms must not be below enrich.min_delay_ms")
		}
	case "normalize":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Normalize.CheckpointPath == "" {
			problems = append(problems, "normalize.checkpoint_path is required")
		}
		if c.Normalize.BatchSize < 1 {
			problems = append(problems, "normalize.batch_size must be at least 1")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", stage, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
