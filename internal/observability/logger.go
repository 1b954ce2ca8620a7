package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the global logger. The dev stage gets a console writer,
// anything else writes JSON lines.
func InitLogger(app, stage, level string) zerolog.Logger {
	var output io.Writer = os.Stdout
	if stage != "prod" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// Channels mirror the log files the server kept for liveness traffic, game
// events and errors. The admin surface logs on its own channel.
const (
	ChannelPing  = "ping"
	ChannelGame  = "game"
	ChannelError = "error"
	ChannelHTTP  = "http"
)

func Channel(name string) zerolog.Logger {
	return log.Logger.With().Str("channel", name).Logger()
}
