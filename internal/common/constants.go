package common

const (
	DefaultConfigPath = "./configs/config.yml"
	DefaultEnvPrefix  = "TICKER_"

	DefaultChannelBufferSize = 64
	DefaultSeedPrice         = "1"
	DefaultTimezone          = "UTC"
	DefaultTimeframe         = "m1"

	// Live cycle delay range, milliseconds.
	DefaultCycleMinDelayMs = 650
	DefaultCycleMaxDelayMs = 1700

	// Backfill step range and startup delay, milliseconds.
	DefaultBackfillMinStepMs   = 500
	DefaultBackfillMaxStepMs   = 2000
	DefaultStartupDelayMs      = 2500
	DefaultReadyPollIntervalMs = 250
	DefaultWindowMinutes       = 60
	DefaultWindowLimit         = 500
	DefaultMaxCandles          = 100
	DefaultMagnitudePrecision  = 4
	DefaultSupervisorInitialMs = 500
	DefaultSupervisorMaxMs     = 30000
	DefaultShutdownTimeoutSec  = 10

	StoreDriverMemory   = "memory"
	StoreDriverJSONL    = "jsonl"
	StoreDriverPostgres = "postgres"

	GRPCServiceName    = "ticker.CandleService"
	MaxGRPCMessageSize = 1024 * 1024 * 10 // 10MB
)
