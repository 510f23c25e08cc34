// Package config handles configuration loading for grimoire-desktop.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. A missing file is not an error: the defaults describe a fully
// working local setup. A .env file in the working directory is loaded first
// when present.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from GRIMOIRE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/grimoire/config.yaml
//  3. ~/.config/grimoire/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  session_secret: "${GRIMOIRE_SESSION_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	updater:
//	  launch_delay: "5s"
//	  check_interval: "6h"
//
// # Configuration Sections
//
// Local HTTP API:
//
//	server:
//	  host: "127.0.0.1"
//	  port: 0              # 0 = first free port between 3000 and 9000
//	  request_timeout: "30s"
//	  max_body_size: 10485760
//
// Database:
//
//	database:
//	  path: ""             # empty = ~/.local/share/grimoire/grimoire.db
//
// Credential validation and sessions:
//
//	auth:
//	  anthropic_base_url: "https://api.anthropic.com"
//	  validate_timeout: "10s"
//	  session_secret: ""   # empty = random per process
//	  session_ttl: "168h"
//
// Update checker:
//
//	updater:
//	  enabled: true
//	  check_on_launch: true
//	  launch_delay: "5s"
//	  check_interval: "6h"
//	  auto_download: true
//	  auto_install: false
//	  feed_url: "https://releases.2389.dev/grimoire/latest.json"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
