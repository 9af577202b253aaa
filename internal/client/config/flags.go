package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tflic/internal/flagx"
)

// ValueFlags lists the flags that take a value, so callers can tell flag
// values apart from the command name.
var ValueFlags = []string{"-s", "-g", "-t", "-f", "-c", "-config"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-s string   REST API base URL
//	-g string   gRPC health endpoint host:port
//	-t int      request timeout in seconds
//	-f string   session file path
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-g", "-t", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "REST API base URL")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC health endpoint address")
	timeout := fs.Int("t", int(cfg.Timeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.SessionFile, "f", cfg.SessionFile, "session file path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.Timeout = time.Duration(*timeout) * time.Second
}
