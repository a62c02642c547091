package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Level is shared by every logger built with New so SetLevel takes effect
// process-wide.
var Level = new(slog.LevelVar)

func New(lvl string, addSource bool, enviroment string) *slog.Logger {

	Level.Set(ParseLevel(lvl))

	opts := &slog.HandlerOptions{
		Level:     Level,
		AddSource: addSource,
	}
	var handler slog.Handler

	if strings.ToLower(enviroment) == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		slog.String("environment", enviroment),
	)
}

// SetLevel changes the level of all loggers returned by New.
func SetLevel(lvl string) {
	Level.Set(ParseLevel(lvl))
}

func ParseLevel(level string) slog.Level {

	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
