// Package cmdutil is the shared bootstrap for the pipeline binaries:
// logging setup and signal-aware root contexts.
package cmdutil

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quay/zlog"
	"github.com/rs/zerolog"
)

// Context returns a root context cancelled on SIGINT or SIGTERM, with the
// process logger configured at the named level.
func Context(level string) (context.Context, context.CancelFunc) {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(logLevel(level)).
		With().Timestamp().Logger()
	zlog.Set(&l)
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func logLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
