package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tflic/internal/flagx"
	"github.com/dmitrijs2005/tflic/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations are
// timex.Duration so files may use "1h" as well as integer nanoseconds.
// Absent keys leave the corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrHTTP     string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC     string          `json:"endpoint_addr_grpc"`
	DatabaseDSN          string          `json:"database_dsn"`
	Issuer               string          `json:"issuer"`
	SecurityKey          string          `json:"security_key"`
	TokenLifetime        *timex.Duration `json:"token_lifetime"`
	RefreshTokenLifetime *timex.Duration `json:"refresh_token_lifetime"`
	ValidAlgorithms      []string        `json:"valid_algorithms"`
	AuthRequired         *bool           `json:"auth_required"`
	PasswordHasher       string          `json:"password_hasher"`
	RateLimit            *string         `json:"rate_limit"`
	TrustProxyHeaders    *bool           `json:"trust_proxy_headers"`
	LogLevel             string          `json:"log_level"`
}

// parseJson overlays Config with values from the JSON file named by -c/-config
// (or TFLIC_CONFIG). Nothing happens when no file is named. Read and decode
// failures panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.Issuer, c.Issuer)
	setString(&config.SecurityKey, c.SecurityKey)
	setString(&config.PasswordHasher, c.PasswordHasher)
	setString(&config.LogLevel, c.LogLevel)

	if c.TokenLifetime != nil {
		config.TokenLifetime = c.TokenLifetime.Duration
	}
	if c.RefreshTokenLifetime != nil {
		config.RefreshTokenLifetime = c.RefreshTokenLifetime.Duration
	}
	if len(c.ValidAlgorithms) > 0 {
		config.ValidAlgorithms = append([]string(nil), c.ValidAlgorithms...)
	}
	if c.AuthRequired != nil {
		config.AuthRequired = *c.AuthRequired
	}
	if c.RateLimit != nil {
		config.RateLimit = *c.RateLimit
	}
	if c.TrustProxyHeaders != nil {
		config.TrustProxyHeaders = *c.TrustProxyHeaders
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
