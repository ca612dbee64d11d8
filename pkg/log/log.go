package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process-wide logger. Locally it writes a pretty console
// format; under Kubernetes it writes plain JSON lines to stderr so the
// cluster's log collector can parse them.
func New() *zerolog.Logger {
	var output io.Writer
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02T15:04:05.999Z07:00"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("ATLAS_LOG_LEVEL")); err == nil {
		level = lvl
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("component", "atlas").Logger()
	return &logger
}
