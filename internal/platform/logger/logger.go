// Package logger provides structured logging for the game server.
// Every economy mutation worth auditing should be traceable through Event.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides leveled logging with context.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a new logger instance writing to stdout/stderr.
func NewLogger() *Logger {
	return &Logger{
		infoLogger:  log.New(os.Stdout, "[RUSH-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(os.Stdout, "[RUSH-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(os.Stderr, "[RUSH-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// NewWriterLogger sends every level to w. Tests use it with a buffer or io.Discard.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{
		infoLogger:  log.New(w, "[RUSH-INFO] ", 0),
		warnLogger:  log.New(w, "[RUSH-WARN] ", 0),
		errorLogger: log.New(w, "[RUSH-ERROR] ", 0),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriterLogger(io.Discard)
}

// Info logs informational messages. Extra args are applied printf-style.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.output(l.infoLogger, msg, args)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.output(l.warnLogger, msg, args)
}

// Error logs error messages.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.output(l.errorLogger, msg, args)
}

// Event logs a specific economy event for a user.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Output(2, fmt.Sprintf("[EVENT:%s] Actor:%s | %s", eventType, actorID, details))
}

func (l *Logger) output(target *log.Logger, msg string, args []interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	target.Output(3, msg)
}
