package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/ledgersync/internal/flagx"
	"github.com/dmitrijs2005/ledgersync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "25s" or as integer nanoseconds.
type JsonConfig struct {
	NodeEndpointAddr  string         `json:"node_endpoint_addr"`
	RelayEndpointAddr string         `json:"relay_endpoint_addr"`
	FaucetURL         string         `json:"faucet_url"`
	FaucetTimeout     timex.Duration `json:"faucet_timeout"`
	PollInterval      timex.Duration `json:"poll_interval"`
	DrainInterval     timex.Duration `json:"drain_interval"`
	QueueMaxAttempts  int            `json:"queue_max_attempts"`
	QueueMaxAge       timex.Duration `json:"queue_max_age"`
	QueueRetryDelay   timex.Duration `json:"queue_retry_delay"`
	DatabasePath      string         `json:"database_path"`
	LegacyStorePath   string         `json:"legacy_store_path"`
	LogLevel          string         `json:"log_level"`
	LogFormat         string         `json:"log_format"`
}

// parseJson overlays Config with the fields present in the JSON file named
// by -c/-config (or $LEDGERSYNC_CONFIG). Fields missing from the file keep
// their current value. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.NodeEndpointAddr, jc.NodeEndpointAddr)
	setString(&cfg.RelayEndpointAddr, jc.RelayEndpointAddr)
	setString(&cfg.FaucetURL, jc.FaucetURL)
	setDuration(&cfg.FaucetTimeout, jc.FaucetTimeout)
	setDuration(&cfg.PollInterval, jc.PollInterval)
	setDuration(&cfg.DrainInterval, jc.DrainInterval)
	if jc.QueueMaxAttempts != 0 {
		cfg.QueueMaxAttempts = jc.QueueMaxAttempts
	}
	setDuration(&cfg.QueueMaxAge, jc.QueueMaxAge)
	setDuration(&cfg.QueueRetryDelay, jc.QueueRetryDelay)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.LegacyStorePath, jc.LegacyStorePath)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
