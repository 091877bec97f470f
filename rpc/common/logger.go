package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sirupsen/logrus"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboat's logger.ILogger on top of logrus)
// --------------------------------------------------------------------------

// skvLogger writes through a shared logrus logger, tagging every line with the
// package name. Levels are filtered per package.
type skvLogger struct {
	mu    sync.RWMutex
	level logger.LogLevel
	entry *logrus.Entry
}

func (l *skvLogger) SetLevel(level logger.LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *skvLogger) enabled(level logger.LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level >= level
}

func (l *skvLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.entry.Debugf(format, args...)
	}
}

func (l *skvLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.entry.Infof(format, args...)
	}
}

func (l *skvLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.entry.Warnf(format, args...)
	}
}

func (l *skvLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.entry.Errorf(format, args...)
	}
}

func (l *skvLogger) Panicf(format string, args ...interface{}) {
	l.entry.Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// base is the logrus logger every package logger writes to
var base = newBaseLogger(os.Stdout)

func newBaseLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.DebugLevel) // filtering happens per package
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

// SetLogOutput redirects all package loggers
func SetLogOutput(out io.Writer) {
	base.SetOutput(out)
}

// CreateLogger implements dragonboat's logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	return &skvLogger{
		level: logger.INFO,
		entry: base.WithField("pkg", pkgName),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a level name to a logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// packages lists every named logger of the server and client
var packages = []string{"engine", "persist", "action", "transport", "server", "client", "bench"}

// factoryOnce guards SetLoggerFactory, dragonboat panics when it is called twice
var factoryOnce sync.Once

// InitLoggers installs the logrus backed factory (once per process) and sets the level
// of every package logger. It may be called again, e.g. by every server started in
// the same process.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}
	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})
	for _, pkg := range packages {
		logger.GetLogger(pkg).SetLevel(lvl)
	}
	return nil
}
