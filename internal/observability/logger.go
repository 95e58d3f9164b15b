package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// SessionLogger tags a component logger with the fields every session line
// carries.
func SessionLogger(base zerolog.Logger, sessionID, remote string) zerolog.Logger {
	return base.With().Str("session_id", sessionID).Str("remote", remote).Logger()
}
