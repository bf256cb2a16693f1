package slogx

import (
	"fmt"
	"log/slog"
)

// KeyLoggerName is the attribute key used to tag the component that logged a record.
const KeyLoggerName = "logger"

// Error returns an "error" attribute with the error's message. A nil error logs as "<nil>".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Stringer logs the String() form of value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName tags a logger with the component name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Chapter tags a record with a chapter number.
func Chapter(n int) slog.Attr {
	return slog.Int("chapter", n)
}

// Stage tags a record with a production stage.
func Stage(stage string) slog.Attr {
	return slog.String("stage", stage)
}

// Agent tags a record with an agent name.
func Agent(name string) slog.Attr {
	return slog.String("agent", name)
}
