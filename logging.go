package tilestage

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls the logger built by NewLogger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// NewLogger builds a logrus logger from cfg. Output always goes to stderr;
// when cfg.File is set it is also written to a size-rotated file.
// The returned closer releases the log file and is never nil.
func NewLogger(cfg LogConfig) (*logrus.Logger, io.Closer) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		warnLevel(log, cfg.Level, err)
		return log, io.NopCloser(nil)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	warnLevel(log, cfg.Level, err)
	return log, rotator
}

func warnLevel(log *logrus.Logger, level string, err error) {
	if err != nil && level != "" {
		log.WithField("level", level).Warn("unknown log level, using info")
	}
}

// discardLogger is used when a component is built without a World (tests,
// standalone decoding).
func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
