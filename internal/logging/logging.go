package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level  string // trace, debug, info, warn, error
	Pretty bool   // human readable console output instead of JSON
	File   string // optional rotating log file, written in JSON
	Output io.Writer
}

// New builds the process logger. Unknown levels fall back to info.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		out = zerolog.MultiLevelWriter(out, rot)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("component", "zonesync").Logger()
}
