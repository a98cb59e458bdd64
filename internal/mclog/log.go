// Package mclog provides structured logging utilities shared across the
// playback pipeline, built on zerolog.
package mclog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	base     zerolog.Logger
	baseOnce sync.Once
)

func root() zerolog.Logger {
	baseOnce.Do(func() {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).
			With().
			Timestamp().
			Logger()
	})
	return base
}

// SetLevel adjusts the global minimum log level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// WithComponent returns a logger tagged with the given component name, the
// same convention the teacher's internal/log package uses.
func WithComponent(component string) zerolog.Logger {
	return root().With().Str("component", component).Logger()
}

// L returns the untagged root logger.
func L() zerolog.Logger { return root() }
