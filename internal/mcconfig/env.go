// Package mcconfig resolves pipeline tunables from environment variables
// (logging the source for observability, per the teacher's convention) with
// an optional YAML overlay file for static tuning.
package mcconfig

import (
	"os"
	"strconv"

	"github.com/mediacore/playback/internal/mclog"
)

// ParseString reads a string environment variable, logging whether the
// value came from the environment or the default.
func ParseString(key, defaultValue string) string {
	logger := mclog.WithComponent("mcconfig")
	if value, ok := os.LookupEnv(key); ok && value != "" {
		logger.Debug().Str("key", key).Str("source", "environment").Msg("using environment variable")
		return value
	}
	logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
	return defaultValue
}

// ParseInt reads an integer environment variable, falling back to
// defaultValue if unset or unparsable.
func ParseInt(key string, defaultValue int) int {
	logger := mclog.WithComponent("mcconfig")
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			logger.Debug().Str("key", key).Int("value", n).Str("source", "environment").Msg("using environment variable")
			return n
		}
		logger.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
	}
	return defaultValue
}

// ParseBool reads a boolean environment variable ("1", "true", "yes").
func ParseBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if value == "yes" {
			return true
		}
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}
