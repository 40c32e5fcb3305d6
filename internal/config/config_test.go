package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/go-arlo/go-arlo-swarm/internal/scorer"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "arlo.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://public-api.birdeye.so", cfg.Birdeye.BaseURL)
	assert.Equal(t, "https://solana-gateway.moralis.io", cfg.Moralis.BaseURL)
	assert.Equal(t, "https://lunarcrush.com/api4", cfg.LunarCrush.BaseURL)
	assert.InDelta(t, 10, cfg.Birdeye.RateLimit, 0.001)
	assert.InDelta(t, 70, cfg.Analysis.LowMarketThreshold, 0.001)
	assert.InDelta(t, 85, cfg.Analysis.LowMarketCap, 0.001)
	assert.InDelta(t, 2.0, cfg.Analysis.FibProximityPct, 0.001)
	assert.Equal(t, 45, cfg.Analysis.MarketTimeoutSecs)
	assert.Equal(t, 60, cfg.Analysis.NarrativeTimeoutSecs)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/arlo
log:
  level: debug
  format: console
server:
  port: 9090
analysis:
  low_market_threshold: 60
  weights:
    market: 0.5
    sentiment: 0.3
    security: 0.2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/arlo", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 60, cfg.Analysis.LowMarketThreshold, 0.001)

	agg := cfg.Analysis.AggregateConfig()
	assert.InDelta(t, 0.5, agg.Weights[scorer.DomainMarket], 0.001)
	assert.NoError(t, agg.Weights.Validate())
	assert.InDelta(t, 60, agg.LowMarketThreshold, 0.001)
}

func TestLoadFromEnv(t *testing.T) {
	chTempDir(t)
	t.Setenv("ARLO_SERVER_PORT", "7070")
	t.Setenv("ARLO_BIRDEYE_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "test-key", cfg.Birdeye.Key)
}

func TestAggregateConfig_Defaults(t *testing.T) {
	agg := AnalysisConfig{}.AggregateConfig()
	assert.NoError(t, agg.Weights.Validate())
	assert.InDelta(t, 0.26, agg.Weights[scorer.DomainSecurity], 0.001)
	assert.InDelta(t, 70, agg.LowMarketThreshold, 0.001)
	assert.InDelta(t, 85, agg.LowMarketCap, 0.001)
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, 45*time.Second, Timeout(45))
	assert.Equal(t, time.Duration(0), Timeout(0))
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	assert.Error(t, err)
}
