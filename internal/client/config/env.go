package config

import "github.com/caarlos0/env/v6"

// parseEnv overlays cfg with the LEDGERSYNC_* variables that are set.
// Unset variables leave the current value alone. Durations use
// time.ParseDuration syntax ("25s"). Panics on malformed values, like the
// other loaders.
func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
}
