// Package config loads runtime configuration for the WetMap device client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected with -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the record store API
//	-d string   path of the device database
//	-i int      online status check interval (seconds)
//	-t int      remote request timeout (seconds)
//	-s int      background sync interval (seconds)
//	-l string   log level (debug, info, warn, error)
//
// # File schema
//
// Durations use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	server_url: http://127.0.0.1:8080/api
//	database_path: /var/lib/wetmap/device.db
//	online_check_interval: 3s
//	request_timeout: 30s
//	sync_interval: 15m
//	retry:
//	  base_delay: 1s
//	  max_delay: 5m
//	  attempts: 3
//	log:
//	  level: debug
//	  format: text
package config
