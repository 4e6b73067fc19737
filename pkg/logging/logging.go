// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/itohio/rcthermo/pkg/config"
)

// Level is a configured log level name.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// IsValid reports whether lvl is one of the known names.
func (lvl Level) IsValid() bool {
	switch lvl {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	default:
		return false
	}
}

// LogrusLevel maps lvl to logrus, defaulting to info.
func (lvl Level) LogrusLevel() logrus.Level {
	switch lvl {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

type fileHook struct {
	mu        sync.Mutex
	file      *os.File
	formatter *logrus.TextFormatter
}

func newFileHook(file string) (*fileHook, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create log dir for %s", file)
	}
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open log file")
	}
	return &fileHook{
		file:      f,
		formatter: &logrus.TextFormatter{FullTimestamp: true, DisableColors: true},
	}, nil
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.file.Write(line); err != nil {
		fmt.Fprintf(os.Stderr, "unable to write log file: %v\n", err)
		return err
	}
	return nil
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file.Close()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Configure sets the text formatter and level of the standard logger and,
// when cfg.File is set, mirrors every entry into that file. The returned
// closer releases the file.
func Configure(cfg config.LogConfig) (io.Closer, error) {
	lvl := Level(cfg.Level)
	if cfg.Level != "" && !lvl.IsValid() {
		return nil, errors.Errorf("unknown log level %q", cfg.Level)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(lvl.LogrusLevel())

	if cfg.File == "" {
		return nopCloser{}, nil
	}
	hook, err := newFileHook(cfg.File)
	if err != nil {
		return nil, err
	}
	logrus.AddHook(hook)
	logrus.WithField("file", cfg.File).Debug("logging to file")
	return hook, nil
}
