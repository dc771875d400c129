package utils

import (
	"log"
	"os"
	"sync"
)

// Logger is the house logger: stdlib log with a debug gate, shared by the
// server, the stores and the background workers.
type Logger struct {
	mu    sync.Mutex
	std   *log.Logger
	debug bool
}

func NewLogger() *Logger {
	return &Logger{std: log.New(os.Stdout, "", log.LstdFlags|log.LUTC)}
}

func (l *Logger) SetDebug(enabled bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.std.Printf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.std.Printf("INFO "+format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.std.Printf("ERROR "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	enabled := l.debug
	l.mu.Unlock()
	if !enabled {
		return
	}
	l.std.Printf("DEBUG "+format, args...)
}
