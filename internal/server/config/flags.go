package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/tflic/internal/flagx"
)

// parseFlags overlays Config with command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-i string   token issuer
//	-s string   token signing key
//	-t int      access token lifetime, seconds
//	-r int      refresh token lifetime, seconds
//	-m string   comma-separated list of accepted signing algorithms
//	-u bool     require bearer tokens on protected routes (use -u=false to disable)
//	-p string   password hasher: argon2id or sha256
//	-l string   auth endpoint rate limit, e.g. "100-M"; "off" disables
//	-x bool     trust X-Forwarded-For / X-Real-IP for the client address
//	-v string   log level
//
// Durations are given in whole seconds. Parse errors panic.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-i", "-s", "-t", "-r", "-m", "-u", "-p", "-l", "-x", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to serve HTTP on")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to serve gRPC health on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "access token issuer")
	fs.StringVar(&config.SecurityKey, "s", config.SecurityKey, "access token signing key")

	tokenLifetime := fs.Int("t", int(config.TokenLifetime.Seconds()), "access token lifetime (in seconds)")
	refreshTokenLifetime := fs.Int("r", int(config.RefreshTokenLifetime.Seconds()), "refresh token lifetime (in seconds)")
	algorithms := fs.String("m", strings.Join(config.ValidAlgorithms, ","), "accepted signing algorithms, comma separated")

	fs.BoolVar(&config.AuthRequired, "u", config.AuthRequired, "require bearer tokens on protected routes")
	fs.StringVar(&config.PasswordHasher, "p", config.PasswordHasher, "password hasher (argon2id|sha256)")
	rateLimit := fs.String("l", config.RateLimit, "auth endpoint rate limit per IP")
	fs.BoolVar(&config.TrustProxyHeaders, "x", config.TrustProxyHeaders, "trust proxy headers for the client address")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenLifetime = time.Duration(*tokenLifetime) * time.Second
	config.RefreshTokenLifetime = time.Duration(*refreshTokenLifetime) * time.Second
	config.ValidAlgorithms = splitList(*algorithms)

	config.RateLimit = *rateLimit
	if strings.EqualFold(config.RateLimit, "off") {
		config.RateLimit = ""
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
