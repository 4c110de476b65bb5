package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process-wide logger set by Init
var Logger zerolog.Logger

// Init configures the global level and the logger for one binary. service
// tags every line ("api", "worker", "asynqmon").
func Init(service, level, format string) {
	zerolog.SetGlobalLevel(parseLogLevel(level))
	Logger = New(os.Stdout, format).With().Str("service", "morningai-"+service).Logger()
	log.Logger = Logger
}

// New builds a logger writing to w. Anything other than "json" gets the console writer.
func New(w io.Writer, format string) zerolog.Logger {
	if !strings.EqualFold(format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func GetLogger() zerolog.Logger {
	return Logger
}

// GormWriter adapts a zerolog logger to gorm's logger.Writer
type GormWriter struct {
	Log   zerolog.Logger
	Level zerolog.Level
}

func (w GormWriter) Printf(format string, args ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	w.Log.WithLevel(w.Level).Str("component", "gorm").Msg(strings.ReplaceAll(msg, "\n", " "))
}
