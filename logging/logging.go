// Package logging configures zap loggers for the daemon and its components.
package logging

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

// NewLogger returns a new Logger.
func NewLogger(base *zap.SugaredLogger) *Logger {
	return &Logger{SugaredLogger: base}
}

// Logging implements access to a default logger and named child loggers.
// Log levels can be configured per named child via Options which, if not configured,
// fall back on a default log level.
type Logging struct {
	logger  *Logger
	output  string
	verbose zap.AtomicLevel

	// coreFactory creates zapcore.Core based on the log level and the log output.
	coreFactory func(zap.AtomicLevel) zapcore.Core

	mu       sync.Mutex
	loggers  map[string]*Logger
	options  Options
	identity string
}

// NewLoggingFromConfig returns a new Logging from Config.
func NewLoggingFromConfig(identity string, c Config) (*Logging, error) {
	var coreFactory func(zap.AtomicLevel) zapcore.Core

	switch c.Output {
	case CONSOLE, FILE:
		sink := zapcore.Lock(os.Stderr)
		if c.Output == FILE {
			// #nosec G304 -- log file path is trusted configuration.
			f, err := os.OpenFile(c.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
			if err != nil {
				return nil, errors.Wrapf(err, "can't open log file %q", c.File)
			}

			sink = zapcore.Lock(f)
		}

		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		coreFactory = func(lvl zap.AtomicLevel) zapcore.Core {
			return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), sink, lvl)
		}
	case JOURNAL:
		coreFactory = func(lvl zap.AtomicLevel) zapcore.Core {
			return NewJournaldCore(identity, lvl)
		}
	default:
		return nil, AssertOutput(c.Output)
	}

	verbose := zap.NewAtomicLevelAt(c.Level)
	base := zap.New(coreFactory(verbose), zap.AddCaller()).Named(identity)

	return &Logging{
		logger:      NewLogger(base.Sugar()),
		output:      c.Output,
		verbose:     verbose,
		coreFactory: coreFactory,
		loggers:     make(map[string]*Logger),
		options:     c.Options,
		identity:    identity,
	}, nil
}

// GetChildLogger returns a named child logger.
// Log levels for named child loggers are obtained from the logging options and, if not found,
// set to the default log level.
func (l *Logging) GetChildLogger(name string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	if logger, ok := l.loggers[name]; ok {
		return logger
	}

	var verbosity zap.AtomicLevel
	if level, found := l.options[name]; found {
		verbosity = zap.NewAtomicLevelAt(level)
	} else {
		verbosity = l.verbose
	}

	base := zap.New(l.coreFactory(verbosity), zap.AddCaller()).Named(l.identity).Named(name)
	logger := NewLogger(base.Sugar())
	l.loggers[name] = logger

	return logger
}

// GetLogger returns the default logger.
func (l *Logging) GetLogger() *Logger {
	return l.logger
}

// Sync flushes the default and all child loggers.
func (l *Logging) Sync() {
	_ = l.logger.Sync()

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, logger := range l.loggers {
		_ = logger.Sync()
	}
}

// stackTracer is implemented by errors of github.com/pkg/errors carrying a stack trace.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// errNoStackTrace hides the stack trace of the wrapped error from zap.
type errNoStackTrace struct {
	e error
}

// Error implements the error interface.
func (e errNoStackTrace) Error() string {
	return e.e.Error()
}

// Error returns a zap.Field for logging e without the stack trace github.com/pkg/errors may have attached.
func Error(e error) zap.Field {
	if _, ok := e.(stackTracer); ok {
		return zap.Error(errNoStackTrace{e})
	}

	return zap.Error(e)
}
