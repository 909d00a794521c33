// Package logger provides the named loggers used throughout kopi.
//
// Every package obtains its logger once at init time with GetLogger and keeps
// it in a package level variable. All loggers share a single level, so a call
// to SetLevel (usually made once at startup from the parsed configuration)
// changes the verbosity of every logger at once.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	baseOnce sync.Once
	base     *zap.Logger

	mu      sync.Mutex
	loggers = map[string]*zap.SugaredLogger{}
)

// root lazily builds the shared zap core. The encoder mimics a classic
// "time | level | name | message" line layout.
func root() *zap.Logger {
	baseOnce.Do(func() {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.ConsoleSeparator = " | "
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stdout),
			level,
		)
		base = zap.New(core)
	})
	return base
}

// GetLogger returns the logger registered under name, creating it on first use.
func GetLogger(name string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	l := root().Named(name).Sugar()
	loggers[name] = l
	return l
}

// ParseLevel converts a level name (debug, info, warn, error) to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warning", "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", name)
	}
}

// SetLevel changes the level of all loggers.
func SetLevel(name string) error {
	l, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// Level returns the current shared level.
func Level() zapcore.Level {
	return level.Level()
}

// Sync flushes all buffered log entries.
func Sync() {
	_ = root().Sync()
}
