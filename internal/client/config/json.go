package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tflic/internal/flagx"
	"github.com/dmitrijs2005/tflic/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent keys
// leave the corresponding Config field unchanged.
type JsonConfig struct {
	ServerURL   *string         `json:"server_url"`
	GRPCAddr    *string         `json:"grpc_addr"`
	Timeout     *timex.Duration `json:"timeout"`
	SessionFile *string         `json:"session_file"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c/-config (or TFLIC_CONFIG). It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	if jc.ServerURL != nil {
		cfg.ServerURL = *jc.ServerURL
	}
	if jc.GRPCAddr != nil {
		cfg.GRPCAddr = *jc.GRPCAddr
	}
	if jc.Timeout != nil {
		cfg.Timeout = jc.Timeout.Duration
	}
	if jc.SessionFile != nil {
		cfg.SessionFile = *jc.SessionFile
	}
}
