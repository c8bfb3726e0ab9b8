package globals

import (
	"os"

	"github.com/rs/zerolog"
)

// Context keys
type ContextKey string

const UserIDKey ContextKey = "userId"
const IdentityKey ContextKey = "identity"

// Log is the process-wide structured logger.
var Log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// SetLogLevel parses lvl ("debug", "info", ...) and applies it globally.
// Unknown levels fall back to info.
func SetLogLevel(lvl string) {
	level, err := zerolog.ParseLevel(lvl)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
