package main

import (
	"os"
	"time"

	"github.com/itchio/headway/state"
	"github.com/rs/zerolog"
)

func newLogger(opts *globalOptions) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}

	var log zerolog.Logger
	if opts.json {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return log.Level(level).With().Timestamp().Logger()
}

// newConsumer forwards the messages stages emit to log.
func newConsumer(log zerolog.Logger) *state.Consumer {
	return &state.Consumer{
		OnMessage: func(level string, msg string) {
			switch level {
			case "debug":
				log.Debug().Msg(msg)
			case "warning":
				log.Warn().Msg(msg)
			case "error":
				log.Error().Msg(msg)
			default:
				log.Info().Msg(msg)
			}
		},
	}
}
