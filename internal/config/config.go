package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Serper     SerperConfig     `yaml:"serper" mapstructure:"serper"`
	BigPicture BigPictureConfig `yaml:"bigpicture" mapstructure:"bigpicture"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Homepage   HomepageConfig   `yaml:"homepage" mapstructure:"homepage"`
	Profile    ProfileConfig    `yaml:"profile" mapstructure:"profile"`
	Features   FeaturesConfig   `yaml:"features" mapstructure:"features"`
	Files      FilesConfig      `yaml:"files" mapstructure:"files"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history and API cache backend.
// Driver is one of sqlite, postgres or none.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// SearchConfig selects the web search backend (serper or jina).
type SearchConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// SerperConfig holds Serper search API settings.
type SerperConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// BigPictureConfig holds company-data API settings.
type BigPictureConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	RateLimitRPS  float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	WindowSize int    `yaml:"window_calls" mapstructure:"window_calls"`
	WindowSecs int    `yaml:"window_secs" mapstructure:"window_secs"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic      map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Jina           JinaPricing             `yaml:"jina" mapstructure:"jina"`
	DefaultPerMTok float64                 `yaml:"default_per_mtok" mapstructure:"default_per_mtok"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// JinaPricing holds Jina Reader pricing.
type JinaPricing struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// HomepageConfig configures the homepage resolution stage.
type HomepageConfig struct {
	QueryTemplate string   `yaml:"query_template" mapstructure:"query_template"`
	NumResults    int      `yaml:"num_results" mapstructure:"num_results"`
	PacingMs      int      `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	OverridesPath string   `yaml:"overrides_path" mapstructure:"overrides_path"`
	ExcludeHosts  []string `yaml:"exclude_hosts" mapstructure:"exclude_hosts"`
}

// ProfileConfig configures the company profile stage.
type ProfileConfig struct {
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelaySecs int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	PacingMs       int    `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	FallbackPath   string `yaml:"fallback_path" mapstructure:"fallback_path"`
}

// FeaturesConfig configures the feature extraction stage.
type FeaturesConfig struct {
	FetchAttempts    int `yaml:"fetch_attempts" mapstructure:"fetch_attempts"`
	FetchPauseMs     int `yaml:"fetch_pause_ms" mapstructure:"fetch_pause_ms"`
	FetchTimeoutSecs int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	MaxContentChars  int `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	PacingMs         int `yaml:"pacing_ms" mapstructure:"pacing_ms"`
}

// FilesConfig names the CSV files that chain the stages together.
type FilesConfig struct {
	Companies string `yaml:"companies" mapstructure:"companies"`
	Homepages string `yaml:"homepages" mapstructure:"homepages"`
	Profiles  string `yaml:"profiles" mapstructure:"profiles"`
	Features  string `yaml:"features" mapstructure:"features"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. A .env file in the
// working directory is loaded into the environment first; variables that
// are already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credentials default to empty so AutomaticEnv can see them.
	v.SetDefault("serper.key", "")
	v.SetDefault("bigpicture.key", "")
	v.SetDefault("jina.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "enrich.db")
	v.SetDefault("store.cache_ttl_hours", 24)
	v.SetDefault("search.provider", "serper")
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.rate_limit_rps", 0)
	v.SetDefault("bigpicture.base_url", "https://company.bigpicture.io/v1")
	v.SetDefault("bigpicture.rate_limit_rps", 0)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.rate_limit_rps", 0)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.window_calls", 50)
	v.SetDefault("anthropic.window_secs", 60)
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.default_per_mtok", 0.60)
	v.SetDefault("homepage.query_template", "%s AI company official website")
	v.SetDefault("homepage.num_results", 10)
	v.SetDefault("homepage.pacing_ms", 1000)
	v.SetDefault("homepage.overrides_path", "")
	v.SetDefault("homepage.exclude_hosts", []string{})
	v.SetDefault("profile.max_retries", 3)
	v.SetDefault("profile.retry_delay_secs", 5)
	v.SetDefault("profile.pacing_ms", 100)
	v.SetDefault("profile.fallback_path", "")
	v.SetDefault("features.fetch_attempts", 3)
	v.SetDefault("features.fetch_pause_ms", 1000)
	v.SetDefault("features.fetch_timeout_secs", 10)
	v.SetDefault("features.max_content_chars", 60000)
	v.SetDefault("features.pacing_ms", 400)
	v.SetDefault("files.companies", "company_list.csv")
	v.SetDefault("files.homepages", "company_list_with_homepages.csv")
	v.SetDefault("files.profiles", "company_info_results.csv")
	v.SetDefault("files.features", "company_features_results.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = true
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
