// Package config handles loading and parsing of configuration from YAML files,
// an optional .env file and environment variables. It defines the application
// configuration structure including server settings, tracker tuning, the
// definition store, the definitions seed file and the alert webhook.
//
// Load reads the configuration once at start-up. Watch re-reads the file on
// change and hands every valid revision to a callback, which the process uses
// to adjust the log level without a restart.
package config
