// Package config loads runtime configuration for the tallysync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   path of the local SQLite database
//	-o          offline mode (sync) enabled; use -o=false to disable
//	-i int      sync interval (seconds)
//	-p string   connectivity probe address (grpc://host:port or http URL)
//	-s string   status server address, empty disables it
//	-l string   log format: text, json or zap
//
// # File schema
//
// Durations use timex.Duration, so they can be strings like "60s" or integer
// nanoseconds:
//
//	{
//	  "database_path": "tallysync.db",
//	  "offline_mode": true,
//	  "sync_interval": "60s",
//	  "probe_addr": "grpc://127.0.0.1:3200",
//	  "collections": [
//	    {"name": "clients", "endpoint": "http://127.0.0.1:8080/api/v1/clients", "required": ["name"]}
//	  ]
//	}
//
// Keys missing from the file keep their default.
package config
