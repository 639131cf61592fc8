// Package config handles configuration loading for clawlink.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults; clawlink runs fine
// with no config file at all once a credential profile exists.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CLAWLINK_CONFIG environment variable
//  2. ./clawlink.yaml (current directory)
//  3. ~/.config/clawlink/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	gateway:
//	  url: "${CLAWLINK_GATEWAY_URL}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	gateway:
//	  request_timeout: "15s"
//	  heartbeat_interval: "10s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Gateway endpoint and link timing:
//
//	gateway:
//	  url: "wss://gateway.example.com:7411/ws"
//	  request_timeout: "15s"     # per-request reply deadline
//	  heartbeat_interval: "10s"  # liveness ping cadence
//
// Credential profile:
//
//	profile: "default"
//
// Local state (credential store, transcripts):
//
//	state:
//	  dir: "~/.local/state/clawlink"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - gateway.url parses and uses a ws or wss scheme
//   - Duration format validity
//   - Logging level and format values
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/clawlink/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Or start from defaults when no file exists:
//
//	cfg := config.Default()
package config
