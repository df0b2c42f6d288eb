package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds runtime settings of the ledgersync client.
//
// Durations are time.Duration values; the env tags name the variables read
// by parseEnv.
type Config struct {
	NodeEndpointAddr  string        `env:"LEDGERSYNC_NODE_ENDPOINT_ADDR"`
	RelayEndpointAddr string        `env:"LEDGERSYNC_RELAY_ENDPOINT_ADDR"`
	FaucetURL         string        `env:"LEDGERSYNC_FAUCET_URL"`
	FaucetTimeout     time.Duration `env:"LEDGERSYNC_FAUCET_TIMEOUT"`
	PollInterval      time.Duration `env:"LEDGERSYNC_POLL_INTERVAL"`
	DrainInterval     time.Duration `env:"LEDGERSYNC_DRAIN_INTERVAL"`
	QueueMaxAttempts  int           `env:"LEDGERSYNC_QUEUE_MAX_ATTEMPTS"`
	QueueMaxAge       time.Duration `env:"LEDGERSYNC_QUEUE_MAX_AGE"`
	QueueRetryDelay   time.Duration `env:"LEDGERSYNC_QUEUE_RETRY_DELAY"`
	DatabasePath      string        `env:"LEDGERSYNC_DATABASE_PATH"`
	LegacyStorePath   string        `env:"LEDGERSYNC_LEGACY_STORE_PATH"`
	LogLevel          string        `env:"LEDGERSYNC_LOG_LEVEL"`
	LogFormat         string        `env:"LEDGERSYNC_LOG_FORMAT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.NodeEndpointAddr = "127.0.0.1:50051"
	c.RelayEndpointAddr = ""
	c.FaucetURL = "http://127.0.0.1:8088/faucet"
	c.FaucetTimeout = 10 * time.Second
	c.PollInterval = 25 * time.Second
	c.DrainInterval = 5 * time.Second
	c.QueueMaxAttempts = 20
	c.QueueMaxAge = 24 * time.Hour
	c.QueueRetryDelay = 5 * time.Second
	c.DatabasePath = "ledgersync.db"
	c.LegacyStorePath = "legacy.db"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.NodeEndpointAddr, validation.Required),
		validation.Field(&c.PollInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.DrainInterval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.FaucetTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.QueueMaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.QueueMaxAge, validation.Min(time.Duration(0))),
		validation.Field(&c.QueueRetryDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
	)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
