package common

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// fdfsLogger implements the ILogger interface with custom formatting
type fdfsLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *fdfsLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *fdfsLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *fdfsLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *fdfsLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *fdfsLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *fdfsLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *fdfsLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-10s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the logger.Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	stdLogger := log.New(os.Stdout, "", log.Ldate|log.Ltime)

	return &fdfsLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to logger.LogLevel
func parseLogLevel(level string) (logger.LogLevel, error) {
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
		return 0, &ConfigError{Field: "LogLevel", Reason: fmt.Sprintf("invalid level %q, must be one of debug, info, warn, error", level)}
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// setFactoryOnce guards the factory installation: dragonboat panics if
// a logger factory is set twice in one process.
var setFactoryOnce sync.Once

// InitLoggers installs the custom logger factory (once per process) and
// applies the configured level to every goFDFS logger.
func InitLoggers(level string) error {
	parsed, err := parseLogLevel(level)
	if err != nil {
		return err
	}

	setFactoryOnce.Do(func() { logger.SetLoggerFactory(CreateLogger) })

	for _, name := range []string{"protocol", "transport", "pool", "client"} {
		logger.GetLogger(name).SetLevel(parsed)
	}
	return nil
}
