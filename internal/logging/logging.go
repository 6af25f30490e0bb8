// Package logging builds the zerolog.Logger instances handed to every
// component constructor. Nothing in this module reaches for a package-level
// logger; components accept one, per spec.md §9's "no hidden singletons"
// direction.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-friendly logger at the level named by levelName
// (spec.md §6's LOG_LEVEL), defaulting to info on an unrecognized name.
func New(levelName string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelName)))
	if err != nil {
		level = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// WithAgent returns a child logger tagged with the owning agent's id, so
// log lines from a dual-agent deployment can be told apart.
func WithAgent(log zerolog.Logger, agentID string) zerolog.Logger {
	return log.With().Str("agent_id", agentID).Logger()
}
