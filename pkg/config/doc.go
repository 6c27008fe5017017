// Package config loads apidiag configuration.
//
// Values are layered, later sources winning:
//
//  1. built-in defaults (Default)
//  2. a YAML file: the --config path, or config.yaml in the user config
//     directory (e.g. ~/.config/apidiag/config.yaml) when present
//  3. APIDIAG_* environment variables, e.g. APIDIAG_MAX_LOGS or
//     APIDIAG_STORAGE_DRIVER
//  4. command-line flags, applied by the caller
//
// Example file:
//
//	enabled: true
//	maxLogs: 200
//	storage:
//	  driver: sqlite
//	  path: /var/lib/apidiag/logs.db
//	log:
//	  level: debug
//	redact:
//	  extraFields: [ssn, pin]
package config
