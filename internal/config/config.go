package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go-ticker/internal/common"
	"go-ticker/internal/pricing"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	HTTPPort int    `yaml:"http_port" validate:"gte=0,lte=65535"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=memory jsonl postgres"`
	Path   string `yaml:"path" validate:"required_if=Driver jsonl"`
	DSN    string `yaml:"dsn" validate:"required_if=Driver postgres"`
}

type GeneratorConfig struct {
	RandomSeed int64  `yaml:"random_seed"`
	Precision  *int32 `yaml:"precision" validate:"omitempty,gte=0,lte=16"`
	SeedPrice  string `yaml:"seed_price" validate:"omitempty,numeric"`
}

type BiasConfig struct {
	UpWeight     int    `yaml:"up_weight" validate:"gte=0"`
	DownWeight   int    `yaml:"down_weight" validate:"gte=0"`
	MinMagnitude string `yaml:"min_magnitude" validate:"required,numeric"`
	MaxMagnitude string `yaml:"max_magnitude" validate:"required,numeric"`
}

// BiasTableConfig overrides the per-position bias; a nil entry keeps the default.
type BiasTableConfig struct {
	None *BiasConfig `yaml:"none"`
	Buy  *BiasConfig `yaml:"buy"`
	Sell *BiasConfig `yaml:"sell"`
}

type SchedulerConfig struct {
	MinDelayMs          int `yaml:"min_delay_ms" validate:"gte=0"`
	MaxDelayMs          int `yaml:"max_delay_ms" validate:"gte=0"`
	WindowMinutes       int `yaml:"window_minutes" validate:"gte=0"`
	WindowLimit         int `yaml:"window_limit" validate:"gte=0"`
	ReadyPollIntervalMs int `yaml:"ready_poll_interval_ms" validate:"gte=0"`
}

type ReconcilerConfig struct {
	StartupDelayMs int `yaml:"startup_delay_ms" validate:"gte=0"`
	MinStepMs      int `yaml:"min_step_ms" validate:"gte=0"`
	MaxStepMs      int `yaml:"max_step_ms" validate:"gte=0"`
}

type AggregatorConfig struct {
	MaxCandles       int    `yaml:"max_candles"`
	Timezone         string `yaml:"timezone"`
	DefaultTimeframe string `yaml:"default_timeframe" validate:"omitempty,oneof=m1 m5 m30 h1 h4 d1 w1 w4"`
}

type SupervisorConfig struct {
	InitialIntervalMs int `yaml:"initial_interval_ms" validate:"gte=0"`
	MaxIntervalMs     int `yaml:"max_interval_ms" validate:"gte=0"`
	MaxElapsedSec     int `yaml:"max_elapsed_sec" validate:"gte=0"`
}

type Config struct {
	Server            ServerConfig     `yaml:"server"`
	Store             StoreConfig      `yaml:"store"`
	Generator         GeneratorConfig  `yaml:"generator"`
	Bias              BiasTableConfig  `yaml:"bias"`
	Scheduler         SchedulerConfig  `yaml:"scheduler"`
	Reconciler        ReconcilerConfig `yaml:"reconciler"`
	Aggregator        AggregatorConfig `yaml:"aggregator"`
	Supervisor        SupervisorConfig `yaml:"supervisor"`
	ChannelBufferSize int              `yaml:"channel_buffer_size" validate:"gte=0"`
	LogLevel          string           `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// LoadConfig reads the YAML file at path, applies TICKER_* environment
// overrides (a .env file in the working directory is honoured) and validates.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		LogLevel: "info", // Default log level
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getenvDefault("LOG_LEVEL", c.LogLevel)
	c.Store.Driver = getenvDefault("STORE_DRIVER", c.Store.Driver)
	c.Store.Path = getenvDefault("STORE_PATH", c.Store.Path)
	c.Store.DSN = getenvDefault("STORE_DSN", c.Store.DSN)
	c.Server.Port = intFromEnv("GRPC_PORT", c.Server.Port)
	c.Server.HTTPPort = intFromEnv("HTTP_PORT", c.Server.HTTPPort)
	c.Aggregator.Timezone = getenvDefault("TIMEZONE", c.Aggregator.Timezone)
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Scheduler.MaxDelayMs > 0 && c.Scheduler.MaxDelayMs < c.Scheduler.MinDelayMs {
		return fmt.Errorf("invalid config: scheduler.max_delay_ms < min_delay_ms")
	}
	if c.Reconciler.MaxStepMs > 0 && c.Reconciler.MaxStepMs < c.Reconciler.MinStepMs {
		return fmt.Errorf("invalid config: reconciler.max_step_ms < min_step_ms")
	}
	if c.Generator.SeedPrice != "" {
		d, err := decimal.NewFromString(c.Generator.SeedPrice)
		if err != nil {
			return fmt.Errorf("invalid config: generator.seed_price: %w", err)
		}
		if d.IsNegative() {
			return fmt.Errorf("invalid config: generator.seed_price %s is negative", d)
		}
	}
	if _, err := c.GetLocation(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.GetBiasTable(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) GetChannelBufferSize() int {
	if c.ChannelBufferSize <= 0 {
		return common.DefaultChannelBufferSize
	}
	return c.ChannelBufferSize
}

// GetCycleDelay returns the live cycle delay range.
func (c *Config) GetCycleDelay() (time.Duration, time.Duration) {
	lo := orDefault(c.Scheduler.MinDelayMs, common.DefaultCycleMinDelayMs)
	hi := orDefault(c.Scheduler.MaxDelayMs, common.DefaultCycleMaxDelayMs)
	if hi < lo {
		hi = lo
	}
	return ms(lo), ms(hi)
}

func (c *Config) GetWindow() time.Duration {
	return time.Duration(orDefault(c.Scheduler.WindowMinutes, common.DefaultWindowMinutes)) * time.Minute
}

func (c *Config) GetWindowLimit() int {
	return orDefault(c.Scheduler.WindowLimit, common.DefaultWindowLimit)
}

func (c *Config) GetReadyPollInterval() time.Duration {
	return ms(orDefault(c.Scheduler.ReadyPollIntervalMs, common.DefaultReadyPollIntervalMs))
}

// GetStartupDelay is the pause before the gap backfill.
func (c *Config) GetStartupDelay() time.Duration {
	return ms(orDefault(c.Reconciler.StartupDelayMs, common.DefaultStartupDelayMs))
}

// GetBackfillStep returns the backfill step range.
func (c *Config) GetBackfillStep() (time.Duration, time.Duration) {
	lo := orDefault(c.Reconciler.MinStepMs, common.DefaultBackfillMinStepMs)
	hi := orDefault(c.Reconciler.MaxStepMs, common.DefaultBackfillMaxStepMs)
	if hi < lo {
		hi = lo
	}
	return ms(lo), ms(hi)
}

// GetMaxCandles returns the candle cap; a negative value disables it.
func (c *Config) GetMaxCandles() int {
	if c.Aggregator.MaxCandles == 0 {
		return common.DefaultMaxCandles
	}
	if c.Aggregator.MaxCandles < 0 {
		return 0
	}
	return c.Aggregator.MaxCandles
}

func (c *Config) GetLocation() (*time.Location, error) {
	tz := c.Aggregator.Timezone
	if tz == "" {
		tz = common.DefaultTimezone
	}
	return time.LoadLocation(tz)
}

func (c *Config) GetDefaultTimeframe() string {
	if c.Aggregator.DefaultTimeframe == "" {
		return common.DefaultTimeframe
	}
	return c.Aggregator.DefaultTimeframe
}

// GetPrecision returns the magnitude precision; only an unset value takes the
// default, so 0 rounds to integers.
func (c *Config) GetPrecision() int32 {
	if c.Generator.Precision == nil {
		return common.DefaultMagnitudePrecision
	}
	return *c.Generator.Precision
}

func (c *Config) GetSeedPrice() decimal.Decimal {
	if c.Generator.SeedPrice == "" {
		return decimal.RequireFromString(common.DefaultSeedPrice)
	}
	// Validate rejects malformed and negative seed prices.
	d, err := decimal.NewFromString(c.Generator.SeedPrice)
	if err != nil {
		return decimal.RequireFromString(common.DefaultSeedPrice)
	}
	return d
}

// GetRandomSeed returns the configured seed, or a time-based one when unset.
func (c *Config) GetRandomSeed() int64 {
	if c.Generator.RandomSeed != 0 {
		return c.Generator.RandomSeed
	}
	return time.Now().UnixNano()
}

func (c *Config) GetSupervisorIntervals() (initial, maxInterval, maxElapsed time.Duration) {
	initial = ms(orDefault(c.Supervisor.InitialIntervalMs, common.DefaultSupervisorInitialMs))
	maxInterval = ms(orDefault(c.Supervisor.MaxIntervalMs, common.DefaultSupervisorMaxMs))
	maxElapsed = time.Duration(c.Supervisor.MaxElapsedSec) * time.Second
	return initial, maxInterval, maxElapsed
}

// GetBiasTable merges configured overrides into pricing.DefaultBiasTable.
func (c *Config) GetBiasTable() (pricing.BiasTable, error) {
	table := pricing.DefaultBiasTable()
	for _, entry := range []struct {
		name string
		in   *BiasConfig
		out  *pricing.BiasConfig
	}{
		{"none", c.Bias.None, &table.None},
		{"buy", c.Bias.Buy, &table.Long},
		{"sell", c.Bias.Sell, &table.Short},
	} {
		if entry.in == nil {
			continue
		}
		b, err := entry.in.toBias()
		if err != nil {
			return pricing.BiasTable{}, fmt.Errorf("bias %s: %w", entry.name, err)
		}
		*entry.out = b
	}
	if err := table.Validate(); err != nil {
		return pricing.BiasTable{}, err
	}
	return table, nil
}

func (b *BiasConfig) toBias() (pricing.BiasConfig, error) {
	lo, err := decimal.NewFromString(b.MinMagnitude)
	if err != nil {
		return pricing.BiasConfig{}, fmt.Errorf("min_magnitude: %w", err)
	}
	hi, err := decimal.NewFromString(b.MaxMagnitude)
	if err != nil {
		return pricing.BiasConfig{}, fmt.Errorf("max_magnitude: %w", err)
	}
	return pricing.BiasConfig{
		UpWeight:     b.UpWeight,
		DownWeight:   b.DownWeight,
		MinMagnitude: lo,
		MaxMagnitude: hi,
	}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(common.DefaultEnvPrefix + key); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(common.DefaultEnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
