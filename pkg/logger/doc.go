// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: text output in dev and staging, JSON
// in prod, and a shared level that can be changed while the process runs.
package logger
