// Package logging настраивает глобальный zerolog-логгер для всех бинарников.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init выставляет уровень и консольный вывод в stderr.
// Неизвестный уровень трактуется как info.
func Init(level string) zerolog.Logger {
	return InitWriter(level, os.Stderr)
}

// InitWriter делает то же, что Init, но пишет в w
func InitWriter(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return log.Logger
}
