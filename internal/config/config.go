package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	Market     MarketConfig     `mapstructure:"market"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Chat       ChatConfig       `mapstructure:"chat"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Session    SessionConfig    `mapstructure:"session"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type AssistantConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type MarketConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AggregatorConfig struct {
	FreshnessWindow     time.Duration `mapstructure:"freshness_window"`
	RefreshInterval     time.Duration `mapstructure:"refresh_interval"`
	InitialDelay        time.Duration `mapstructure:"initial_delay"`
	WatchlistQuoteLimit int           `mapstructure:"watchlist_quote_limit"`
}

type ChatConfig struct {
	HistoryWindow int `mapstructure:"history_window"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type StorageConfig struct {
	Type    string `mapstructure:"type"`
	DataDir string `mapstructure:"data_dir"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FINBOARD")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Config file wins; fall back to the conventional env vars when the
	// keys are absent from the file.
	if cfg.Assistant.APIKey == "" {
		cfg.Assistant.APIKey = os.Getenv("ASSISTANT_API_KEY")
	}
	if cfg.Market.APIKey == "" {
		cfg.Market.APIKey = os.Getenv("MARKET_API_KEY")
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Aggregator.FreshnessWindow <= 0 {
		c.Aggregator.FreshnessWindow = 30 * time.Second
	}
	if c.Aggregator.RefreshInterval <= 0 {
		c.Aggregator.RefreshInterval = 30 * time.Second
	}
	if c.Aggregator.InitialDelay == 0 {
		c.Aggregator.InitialDelay = 500 * time.Millisecond
	}
	if c.Aggregator.WatchlistQuoteLimit <= 0 {
		c.Aggregator.WatchlistQuoteLimit = 10
	}
	if c.Chat.HistoryWindow <= 0 {
		c.Chat.HistoryWindow = 10
	}
	if c.Market.Timeout <= 0 {
		c.Market.Timeout = 10 * time.Second
	}
}

func Get() *Config {
	return cfg
}
