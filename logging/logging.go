package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30
	DefaultCompress   = true

	timeFormat = "2006-01-02 15:04:05"
)

// Apply sets the global log level and output writers: the console, plus a
// rotating file when logFilePath is not empty.
func Apply(level string, logFilePath string) {
	applyLevel(level)
	log.Logger = zerolog.New(writer(os.Stdout, logFilePath)).With().Timestamp().Logger()
}

// Level maps a level name (trace, debug, info, warn, error) to zerolog.
// Unknown names mean info.
func Level(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Verbosity returns the level for a -v count: 1 is debug, 2 or more trace.
// Zero keeps fallback.
func Verbosity(count int, fallback string) string {
	switch {
	case count >= 2:
		return "trace"
	case count == 1:
		return "debug"
	}
	return fallback
}

func applyLevel(level string) {
	zerolog.SetGlobalLevel(Level(level))
}

func writer(console io.Writer, logFilePath string) io.Writer {
	consoleOutput := zerolog.ConsoleWriter{Out: console, TimeFormat: timeFormat}
	if logFilePath == "" {
		return consoleOutput
	}

	if err := ensureLogDir(logFilePath); err != nil {
		l := zerolog.New(consoleOutput)
		l.Error().Err(err).Str("path", logFilePath).
			Msg("Failed to prepare log directory; logging to console only")
		return consoleOutput
	}

	fileWriter := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAgeDays,
		Compress:   DefaultCompress,
	}
	fileConsole := zerolog.ConsoleWriter{
		Out:        fileWriter,
		TimeFormat: timeFormat,
		NoColor:    true,
	}
	return zerolog.MultiLevelWriter(consoleOutput, fileConsole)
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
