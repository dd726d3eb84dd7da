package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the global console logger. Without debug only errors
// reach stderr, the status display reports everything else. With debug set,
// output goes to LogFile so it does not fight with the display.
func InitLogger(debug bool) (io.Closer, error) {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		f, err := os.OpenFile(LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return closer, err
		}
		out, closer = f, f
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.DateTime,
		NoColor:    debug,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
