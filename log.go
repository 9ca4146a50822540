package rpcsocket

import (
	"os"

	"github.com/rs/zerolog"
)

// defaultLogger is used by sessions constructed without WithLogger.
var defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
