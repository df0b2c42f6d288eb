package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/ledgersync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the ledger node
//	-r string   address and port of the relay ("" disables it)
//	-i int      coordinator poll interval in seconds
//	-d string   path of the local SQLite database
//
// os.Args is filtered with flagx.FilterArgs first, so flags owned by other
// components do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-r", "-i", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.NodeEndpointAddr, "a", cfg.NodeEndpointAddr, "address and port of the ledger node")
	fs.StringVar(&cfg.RelayEndpointAddr, "r", cfg.RelayEndpointAddr, "address and port of the relay")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database")
	pollInterval := fs.Int("i", int(cfg.PollInterval.Seconds()), "poll interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.PollInterval = time.Duration(*pollInterval) * time.Second
}
