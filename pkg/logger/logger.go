// Package logx configures the process-wide zerolog logger and exposes
// thin level helpers so callers never import zerolog directly.
package logx

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/campusconnect-poc/server/internal/core"
)

type LoggerOpts struct {
	Environment core.Environment
}

// Init sets up the global logger. Production emits JSON at info level;
// everything else gets the console writer at debug with caller locations,
// which is what you want while poking at the pipeline locally.
func Init(opts ...LoggerOpts) {
	env := core.Development
	if len(opts) > 0 {
		env = opts[0].Environment
	}

	if env.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).
			With().Timestamp().Logger().
			Level(zerolog.InfoLevel)
		return
	}

	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).
		With().Timestamp().Caller().Logger().
		Level(zerolog.DebugLevel)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}
