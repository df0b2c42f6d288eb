// Package config loads runtime configuration for the ledgersync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or $LEDGERSYNC_CONFIG.
//  3. LEDGERSYNC_* environment variables. The binary also autoloads a .env
//     file before configuration is read.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   address:port of the ledger node
//	-r string   address:port of the relay
//	-i int      coordinator poll interval (seconds)
//	-d string   SQLite database path
//
// # JSON schema
//
// Intervals use timex.Duration, so values are strings like "25s" or integer
// nanoseconds:
//
//	{
//	  "node_endpoint_addr": "127.0.0.1:50051",
//	  "relay_endpoint_addr": "127.0.0.1:50052",
//	  "faucet_url": "http://127.0.0.1:8088/faucet",
//	  "faucet_timeout": "10s",
//	  "poll_interval": "25s",
//	  "drain_interval": "5s",
//	  "queue_max_attempts": 20,
//	  "queue_max_age": "24h",
//	  "database_path": "ledgersync.db",
//	  "legacy_store_path": "legacy.db",
//	  "log_level": "info",
//	  "log_format": "text"
//	}
//
// Call (*Config).Validate after LoadConfig.
package config
