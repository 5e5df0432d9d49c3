// Package log is a leveled logfmt logger shared by every component.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

var (
	mu     sync.RWMutex
	output io.Writer = os.Stderr
	filter           = level.AllowInfo()
	logger           = build()
)

func build() kitlog.Logger {
	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(output))
	l = level.NewFilter(l, filter)
	return kitlog.With(l, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(4))
}

// Logger returns the underlying go-kit logger, e.g. for transport error logging.
func Logger() kitlog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLevel accepts debug, info, warn or error.
func SetLevel(name string) error {
	var opt level.Option
	switch name {
	case "debug":
		opt = level.AllowDebug()
	case "info", "":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return fmt.Errorf("unknown log level %q", name)
	}

	mu.Lock()
	defer mu.Unlock()
	filter = opt
	logger = build()
	return nil
}

// SetOutput redirects log output; tests use it to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	logger = build()
}

// EnableFileLogger appends to savePath in addition to stderr.
func EnableFileLogger(savePath string) error {
	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return err
	}
	file, err := os.OpenFile(savePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	SetOutput(io.MultiWriter(os.Stderr, file))
	return nil
}

func Debug(keyvals ...interface{}) {
	level.Debug(Logger()).Log(keyvals...)
}

func Info(keyvals ...interface{}) {
	level.Info(Logger()).Log(keyvals...)
}

func Warn(keyvals ...interface{}) {
	level.Warn(Logger()).Log(keyvals...)
}

func Error(keyvals ...interface{}) {
	level.Error(Logger()).Log(keyvals...)
}
