package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-ticker/internal/common"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "config.yml"))
	require.NoError(t, err)

	assert.Equal(t, 50051, cfg.Server.Port)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, common.StoreDriverJSONL, cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(42), cfg.GetRandomSeed())
	assert.Equal(t, int32(2), cfg.GetPrecision())
	assert.Equal(t, "500", cfg.GetSeedPrice().String())
	assert.Equal(t, 16, cfg.GetChannelBufferSize())
	assert.Equal(t, 50, cfg.GetMaxCandles())
	assert.Equal(t, "m5", cfg.GetDefaultTimeframe())
	assert.Equal(t, 30*time.Minute, cfg.GetWindow())
	assert.Equal(t, 250, cfg.GetWindowLimit())
	assert.Equal(t, 10*time.Millisecond, cfg.GetStartupDelay())

	lo, hi := cfg.GetCycleDelay()
	assert.Equal(t, 100*time.Millisecond, lo)
	assert.Equal(t, 200*time.Millisecond, hi)

	lo, hi = cfg.GetBackfillStep()
	assert.Equal(t, 400*time.Millisecond, lo)
	assert.Equal(t, 900*time.Millisecond, hi)

	loc, err := cfg.GetLocation()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	table, err := cfg.GetBiasTable()
	require.NoError(t, err)
	assert.Equal(t, 4, table.Long.DownWeight)
	assert.Equal(t, "1.5", table.Long.MaxMagnitude.String())
	assert.Equal(t, 3, table.Short.UpWeight, "unset entries keep defaults")
}

func TestDefaults(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	require.NoError(t, cfg.Validate())

	lo, hi := cfg.GetCycleDelay()
	assert.Equal(t, 650*time.Millisecond, lo)
	assert.Equal(t, 1700*time.Millisecond, hi)
	lo, hi = cfg.GetBackfillStep()
	assert.Equal(t, 500*time.Millisecond, lo)
	assert.Equal(t, 2000*time.Millisecond, hi)
	assert.Equal(t, 2500*time.Millisecond, cfg.GetStartupDelay())
	assert.Equal(t, 60*time.Minute, cfg.GetWindow())
	assert.Equal(t, 500, cfg.GetWindowLimit())
	assert.Equal(t, 100, cfg.GetMaxCandles())
	assert.Equal(t, "1", cfg.GetSeedPrice().String())
	assert.Equal(t, "m1", cfg.GetDefaultTimeframe())

	cfg.Aggregator.MaxCandles = -1
	assert.Equal(t, 0, cfg.GetMaxCandles())
}

func int32Ptr(v int32) *int32 { return &v }

func TestExplicitZeroPrecision(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	assert.Equal(t, int32(4), cfg.GetPrecision())

	cfg.Generator.Precision = int32Ptr(0)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int32(0), cfg.GetPrecision())
}

func TestLoadRejectsNegativeSeedPrice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neg.yml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  seed_price: \"-5\"\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	cfg := &Config{LogLevel: "info", Generator: GeneratorConfig{SeedPrice: "0"}}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.GetSeedPrice().IsZero())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TICKER_LOG_LEVEL", "warn")
	t.Setenv("TICKER_STORE_DRIVER", "memory")
	t.Setenv("TICKER_HTTP_PORT", "9090")

	cfg, err := LoadConfig(filepath.Join("testdata", "config.yml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, common.StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.HTTPPort)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]*Config{
		"log level":   {LogLevel: "loud"},
		"driver":      {LogLevel: "info", Store: StoreConfig{Driver: "mongo"}},
		"jsonl path":  {LogLevel: "info", Store: StoreConfig{Driver: "jsonl"}},
		"dsn":         {LogLevel: "info", Store: StoreConfig{Driver: "postgres"}},
		"delays":      {LogLevel: "info", Scheduler: SchedulerConfig{MinDelayMs: 500, MaxDelayMs: 100}},
		"timezone":    {LogLevel: "info", Aggregator: AggregatorConfig{Timezone: "Mars/Olympus"}},
		"timeframe":   {LogLevel: "info", Aggregator: AggregatorConfig{DefaultTimeframe: "m2"}},
		"bias weight": {LogLevel: "info", Bias: BiasTableConfig{None: &BiasConfig{MinMagnitude: "1", MaxMagnitude: "2"}}},
		"bias range":  {LogLevel: "info", Bias: BiasTableConfig{Sell: &BiasConfig{UpWeight: 1, MinMagnitude: "3", MaxMagnitude: "2"}}},
		"seed price":  {LogLevel: "info", Generator: GeneratorConfig{SeedPrice: "-5"}},
		"precision":   {LogLevel: "info", Generator: GeneratorConfig{Precision: int32Ptr(17)}},
	}
	for name, cfg := range cases {
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
