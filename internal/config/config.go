// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/go-arlo/go-arlo-swarm/internal/scorer"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Birdeye    BirdeyeConfig    `yaml:"birdeye" mapstructure:"birdeye"`
	Moralis    MoralisConfig    `yaml:"moralis" mapstructure:"moralis"`
	LunarCrush LunarCrushConfig `yaml:"lunarcrush" mapstructure:"lunarcrush"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BirdeyeConfig holds Birdeye API settings (price history, liquidity).
type BirdeyeConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// MoralisConfig holds Moralis API settings (swaps, pairs, metadata).
type MoralisConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LunarCrushConfig holds LunarCrush API settings (social sentiment).
type LunarCrushConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings for narrative generation.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnalysisConfig tunes the scoring pipeline.
type AnalysisConfig struct {
	// Weights are the per-domain aggregation weights; they must sum to 1.
	Weights map[string]float64 `yaml:"weights" mapstructure:"weights"`
	// LowMarketThreshold and LowMarketCap bound the final score when the
	// market domain is weak.
	LowMarketThreshold float64 `yaml:"low_market_threshold" mapstructure:"low_market_threshold"`
	LowMarketCap       float64 `yaml:"low_market_cap" mapstructure:"low_market_cap"`
	// FibProximityPct is the retracement-level proximity tolerance.
	FibProximityPct float64 `yaml:"fib_proximity_pct" mapstructure:"fib_proximity_pct"`
	// Timeouts per external domain, in seconds.
	MarketTimeoutSecs    int `yaml:"market_timeout_secs" mapstructure:"market_timeout_secs"`
	SentimentTimeoutSecs int `yaml:"sentiment_timeout_secs" mapstructure:"sentiment_timeout_secs"`
	SafetyTimeoutSecs    int `yaml:"safety_timeout_secs" mapstructure:"safety_timeout_secs"`
	NarrativeTimeoutSecs int `yaml:"narrative_timeout_secs" mapstructure:"narrative_timeout_secs"`
}

// AggregateConfig converts the analysis section into scorer settings.
func (c AnalysisConfig) AggregateConfig() scorer.AggregateConfig {
	cfg := scorer.DefaultAggregateConfig()
	if len(c.Weights) > 0 {
		w := make(scorer.Weights, len(c.Weights))
		for domain, weight := range c.Weights {
			w[scorer.Domain(domain)] = weight
		}
		cfg.Weights = w
	}
	if c.LowMarketThreshold > 0 {
		cfg.LowMarketThreshold = c.LowMarketThreshold
	}
	if c.LowMarketCap > 0 {
		cfg.LowMarketCap = c.LowMarketCap
	}
	return cfg
}

// Timeout converts a seconds field into a duration, zero when unset.
func Timeout(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ARLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "arlo.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	// Key defaults keep the env bindings visible to Unmarshal.
	v.SetDefault("birdeye.key", "")
	v.SetDefault("moralis.key", "")
	v.SetDefault("lunarcrush.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("birdeye.base_url", "https://public-api.birdeye.so")
	v.SetDefault("birdeye.rate_limit", 10)
	v.SetDefault("moralis.base_url", "https://solana-gateway.moralis.io")
	v.SetDefault("moralis.rate_limit", 25)
	v.SetDefault("lunarcrush.base_url", "https://lunarcrush.com/api4")
	v.SetDefault("lunarcrush.rate_limit", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("analysis.low_market_threshold", 70)
	v.SetDefault("analysis.low_market_cap", 85)
	v.SetDefault("analysis.fib_proximity_pct", 2.0)
	v.SetDefault("analysis.market_timeout_secs", 45)
	v.SetDefault("analysis.sentiment_timeout_secs", 30)
	v.SetDefault("analysis.safety_timeout_secs", 30)
	v.SetDefault("analysis.narrative_timeout_secs", 60)

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
