// Package logger is the leveled logging facade shared by the sinsfetch
// commands. Components depend on the Logger interface and never on a
// concrete backend, so tests can swap in MockLogger or NopLogger.
package logger

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
)

// Logger defines the logging surface used across sinsfetch.
type Logger interface {
	// Debug logs diagnostic detail (e.g., "poll: 3 active, 12 queued").
	// Backends drop debug output unless it has been enabled.
	Debug(format string, args ...interface{})

	// Info logs an informational message (e.g., "catalog built: 10 targets").
	Info(format string, args ...interface{})

	// Warning logs a recoverable problem (e.g., "ledger write failed").
	Warning(format string, args ...interface{})

	// Error logs a failure (e.g., "Node3_audio_02.zip: http 503").
	Error(format string, args ...interface{})

	// Close releases resources held by the backend. Safe to call twice.
	Close() error
}

// StandardLogger writes to a stdlib *log.Logger with [LEVEL] prefixes.
type StandardLogger struct {
	logger *log.Logger
	debug  atomic.Bool
}

// NewStandardLogger wraps l. Debug output is off until SetDebug(true).
func NewStandardLogger(l *log.Logger) *StandardLogger {
	return &StandardLogger{logger: l}
}

// New builds a StandardLogger writing timestamped lines to w.
func New(w io.Writer, debug bool) *StandardLogger {
	s := NewStandardLogger(log.New(w, "", log.LstdFlags))
	s.SetDebug(debug)
	return s
}

// SetDebug toggles [DEBUG] output.
func (s *StandardLogger) SetDebug(on bool) {
	s.debug.Store(on)
}

func (s *StandardLogger) Debug(format string, args ...interface{}) {
	if !s.debug.Load() {
		return
	}
	s.logger.Printf("[DEBUG] "+format, args...)
}

func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.logger.Printf("[INFO] "+format, args...)
}

func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.logger.Printf("[WARNING] "+format, args...)
}

func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.logger.Printf("[ERROR] "+format, args...)
}

// Close is a no-op; the underlying writer belongs to the caller.
func (s *StandardLogger) Close() error {
	return nil
}

// NopLogger discards everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Debug(format string, args ...interface{})   {}
func (n *NopLogger) Info(format string, args ...interface{})    {}
func (n *NopLogger) Warning(format string, args ...interface{}) {}
func (n *NopLogger) Error(format string, args ...interface{})   {}
func (n *NopLogger) Close() error                               { return nil }

var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
)

// MockLogger records formatted messages per level for assertions.
// It is safe for concurrent use because transfer goroutines log too.
type MockLogger struct {
	mu           sync.Mutex
	DebugCalls   []string
	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
	CloseCalled  bool
}

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) record(dst *[]string, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*dst = append(*dst, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Debug(format string, args ...interface{}) {
	m.record(&m.DebugCalls, format, args...)
}

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.record(&m.InfoCalls, format, args...)
}

func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.record(&m.WarningCalls, format, args...)
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.record(&m.ErrorCalls, format, args...)
}

func (m *MockLogger) Close() error {
	m.mu.Lock()
	m.CloseCalled = true
	m.mu.Unlock()
	return nil
}

// Errors returns a snapshot of the recorded error messages.
func (m *MockLogger) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ErrorCalls...)
}

// Warnings returns a snapshot of the recorded warning messages.
func (m *MockLogger) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.WarningCalls...)
}

var _ Logger = (*MockLogger)(nil)
