// Package config loads runtime configuration for the tflicctl CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or the TFLIC_CONFIG
//     environment variable.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-s string   REST API base URL
//	-g string   gRPC health endpoint host:port
//	-t int      request timeout (seconds)
//	-f string   session file path
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "grpc_addr": "127.0.0.1:50051",
//	  "timeout": "10s",
//	  "session_file": "/home/me/.config/tflic/session.json"
//	}
package config
