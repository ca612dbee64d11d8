package pipeline_test

import (
	"io"

	"github.com/rs/zerolog"
)

func silentLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}
