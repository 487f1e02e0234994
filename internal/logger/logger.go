// Package logger writes leveled log lines to stdout and to a daily log file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"
)

// sink is shared by every child logger returned from With.
type sink struct {
	mu         sync.Mutex
	logDir     string
	logFile    *os.File
	logger     *log.Logger
	currentDay string
	rotate     bool
}

// Logger handles application logging
type Logger struct {
	sink      *sink
	component string
}

// New creates a logger writing to stdout and <logDir>/YYYY-MM-DD.log.
// If the directory cannot be used it logs to stdout only.
func New(logDir string) *Logger {
	s := &sink{logDir: logDir, rotate: true}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("Warning: Could not create logs directory: %v", err)
		s.rotate = false
	}
	if s.rotate {
		if err := s.rotateLogFile(); err != nil {
			log.Printf("Warning: Could not create log file: %v. Logging to stdout only.", err)
			s.rotate = false
		}
	}
	if s.logFile != nil {
		s.logger = log.New(io.MultiWriter(os.Stdout, s.logFile), "", log.LstdFlags)
	} else {
		s.logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	l := &Logger{sink: s}
	l.Info("Logger initialized", fmt.Sprintf("Log directory: %s", logDir))
	return l
}

// NewWriter creates a logger without file rotation, used by tests and tools.
func NewWriter(w io.Writer) *Logger {
	return &Logger{sink: &sink{logger: log.New(w, "", 0)}}
}

// With returns a logger that prefixes every line with [component].
func (l *Logger) With(component string) *Logger {
	return &Logger{sink: l.sink, component: component}
}

// rotateLogFile creates a new log file for the current day
func (s *sink) rotateLogFile() error {
	today := time.Now().Format("2006-01-02")
	if s.currentDay == today && s.logFile != nil {
		return nil
	}
	if s.logFile != nil {
		s.logFile.Close()
	}

	path := filepath.Join(s.logDir, fmt.Sprintf("%s.log", today))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	s.logFile = file
	s.currentDay = today
	return nil
}

func (s *sink) checkAndRotate() {
	if !s.rotate || s.currentDay == time.Now().Format("2006-01-02") {
		return
	}
	if err := s.rotateLogFile(); err == nil {
		s.logger.SetOutput(io.MultiWriter(os.Stdout, s.logFile))
	}
}

func (l *Logger) printf(level, message, detail string) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkAndRotate()
	prefix := ""
	if l.component != "" {
		prefix = "[" + l.component + "] "
	}
	s.logger.Printf("[%s] %s%s%s", level, prefix, message, detail)
}

func joinDetails(details []string) string {
	out := ""
	for _, d := range details {
		if d != "" {
			out += " | " + d
		}
	}
	return out
}

// Info logs an informational message
func (l *Logger) Info(message string, details ...string) {
	l.printf("INFO", message, joinDetails(details))
}

// Warning logs a warning message
func (l *Logger) Warning(message string, details ...string) {
	l.printf("WARNING", message, joinDetails(details))
}

// Error logs an error message
func (l *Logger) Error(message string, err error, details ...string) {
	errorStr := ""
	if err != nil {
		errorStr = fmt.Sprintf(" | Error: %v", err)
	}
	l.printf("ERROR", message, errorStr+joinDetails(details))
}

// Fatal logs an error message and exits the process.
func (l *Logger) Fatal(message string, err error) {
	l.Error(message, err)
	l.Close()
	os.Exit(1)
}

// Alert logs an operator-facing notification.
func (l *Logger) Alert(message string, details ...string) {
	l.printf("ALERT", message, joinDetails(details))
}

// Panic logs a recovered panic with stack trace
func (l *Logger) Panic(recovered interface{}) {
	l.printf("PANIC", fmt.Sprintf("Recovered from panic: %v", recovered), "")
	l.printf("PANIC", "Stack trace:\n"+string(debug.Stack()), "")
}

// RecoverPanic is deferred at the top of goroutines.
func (l *Logger) RecoverPanic() {
	if r := recover(); r != nil {
		l.Panic(r)
	}
}

// Dir returns the directory where logs are stored
func (l *Logger) Dir() string {
	return l.sink.logDir
}

// CleanOldLogs removes log files older than specified days
func (l *Logger) CleanOldLogs(daysToKeep int) error {
	if l.sink.logDir == "" {
		return nil
	}
	files, err := os.ReadDir(l.sink.logDir)
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -daysToKeep)
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".log" {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(l.sink.logDir, file.Name())
			l.Info("Deleting old log file", path)
			os.Remove(path)
		}
	}
	return nil
}

// Close closes the log file
func (l *Logger) Close() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.logFile != nil {
		l.sink.logFile.Close()
		l.sink.logFile = nil
	}
}
