package services

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogWriter returns stderr, teed into a size-rotated file when LogFile is set.
func LogWriter(cfg *Config) io.Writer {
	if cfg.LogFile == "" {
		return os.Stderr
	}
	return io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
}

// SetupLogging points the standard logger at LogWriter and returns the writer
// so component loggers can share it.
func SetupLogging(cfg *Config) io.Writer {
	w := LogWriter(cfg)
	log.SetOutput(w)
	return w
}
