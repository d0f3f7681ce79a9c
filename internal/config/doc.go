// Package config handles configuration loading for toolmux.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TOOLMUX_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/toolmux/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	formatter:
//	  api_key: "${OPENAI_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	engine:
//	  call_timeout: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "127.0.0.1:8080"   # admin API listen address
//
// Database settings:
//
//	database:
//	  path: "~/.local/share/toolmux/toolmux.db"
//
// Tool providers, one subprocess per alias. Exactly one provider carries
// default: true and also serves unprefixed tool names:
//
//	providers:
//	  jarvis:
//	    command: "jarvis-provider"
//	    default: true
//	  trading:
//	    command: "python3"
//	    args: ["-m", "trading_provider"]
//	    env:
//	      EXCHANGE_API_KEY: "${EXCHANGE_API_KEY}"
//
// Discord front-end:
//
//	discord:
//	  enabled: true
//	  token: "${DISCORD_TOKEN}"
//	  prefix: ""
//
// Result formatter:
//
//	formatter:
//	  enabled: true
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//	  timeout: "8s"
package config
