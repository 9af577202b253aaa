package config

import "time"

// Config holds runtime settings for the tflicctl CLI.
//
// Fields:
//   - ServerURL: base URL of the REST API (scheme and host, no path).
//   - GRPCAddr: host:port of the gRPC health endpoint.
//   - Timeout: per-request timeout.
//   - SessionFile: where the last token pair is kept. Empty means
//     <user config dir>/tflic/session.json.
type Config struct {
	ServerURL   string
	GRPCAddr    string
	Timeout     time.Duration
	SessionFile string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.GRPCAddr = "127.0.0.1:50051"
	c.Timeout = 10 * time.Second
	c.SessionFile = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
