// Package logging provides the single zerolog entry point used by every
// other package in this module, following the setup in
// cmd/server/main.go (global level + optional pretty console writer).
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Configure sets the global log level and, for interactive/dev use, switches
// to a human-readable console writer instead of JSON lines.
func Configure(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// For returns a sub-logger tagged with the owning component, e.g.
// logging.For("sshconn").Info().Str("host", host).Msg("dialing").
func For(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
