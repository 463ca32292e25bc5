// Package config loads runtime configuration for the gophsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Every key is optional. Durations accept strings like "3s" or integer
// nanoseconds; sizes are bytes:
//
//	{
//	  "data_dir": "/home/me/.config/gophsync",
//	  "remote_mode": "grpc",
//	  "server_addr": "127.0.0.1:50051",
//	  "device_id": "laptop",
//	  "device_secret": "s3cret",
//	  "probe_addr": "",
//	  "probe_timeout": "3s",
//	  "status_interval": "5s",
//	  "remote_timeout": "10s",
//	  "batch_size": 8,
//	  "retry_base": "2s",
//	  "max_retries": 5,
//	  "low_threshold": 10485760,
//	  "high_threshold": 104857600,
//	  "piece_size": 1048576,
//	  "progress_interval": "250ms",
//	  "session_ttl": "5m",
//	  "idle_timeout": "30m",
//	  "yield_every": 16,
//	  "yield_pause": "2ms",
//	  "strict_chunk_order": false,
//	  "log_file": "",
//	  "log_level": "info"
//	}
//
// The device secret is usually left out of the file; the CLI prompts for it
// when stdin is a terminal.
package config
