package vkhal

import (
	"log"
	"os"
)

// loggers bundles the three severity-split loggers every Instance
// carries. Log lines go to stderr; file sinks are an application
// concern, not the HAL's.
type loggers struct {
	info  *log.Logger
	warn  *log.Logger
	error *log.Logger
}

func newLoggers() *loggers {
	return &loggers{
		info:  log.New(os.Stderr, "vkhal-info: ", log.LstdFlags),
		warn:  log.New(os.Stderr, "vkhal-warn: ", log.LstdFlags),
		error: log.New(os.Stderr, "vkhal-error: ", log.LstdFlags),
	}
}

func (l *loggers) warnf(format string, args ...any) {
	l.warn.Printf(format, args...)
}

func (l *loggers) infof(format string, args ...any) {
	l.info.Printf(format, args...)
}

func (l *loggers) errorf(format string, args ...any) {
	l.error.Printf(format, args...)
}
