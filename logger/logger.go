package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level       string
	ServiceName string
	Pretty      bool
	Output      io.Writer
}

// New builds the process logger. An unknown level falls back to info.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	return ctx.Logger()
}

// Printf satisfies the writer interface of gorm's logger.
type Printf struct {
	Log   zerolog.Logger
	Level zerolog.Level
}

func (p Printf) Printf(format string, v ...any) {
	p.Log.WithLevel(p.Level).Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// MigrateLogger adapts zerolog to migrate.Logger.
type MigrateLogger struct {
	out     Printf
	verbose bool
}

func NewMigrateLogger(log zerolog.Logger, verbose bool) *MigrateLogger {
	return &MigrateLogger{
		out:     Printf{Log: log.With().Str("component", "migrate").Logger(), Level: zerolog.InfoLevel},
		verbose: verbose,
	}
}

func (m *MigrateLogger) Printf(format string, v ...any) { m.out.Printf(format, v...) }

func (m *MigrateLogger) Verbose() bool { return m.verbose }
