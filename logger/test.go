package logger

import (
	"fmt"
	"strings"
	"sync"
)

// TestLogEntry is a single captured log line.
type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
}

// TestLogger captures log entries for assertions in tests.
type TestLogger struct {
	mu       *sync.Mutex
	metadata map[string]interface{}
	entries  *[]TestLogEntry
}

var _ Logger = (*TestLogger)(nil)

// NewTestLogger returns a Logger that records every entry.
func NewTestLogger() *TestLogger {
	return &TestLogger{mu: &sync.Mutex{}, entries: &[]TestLogEntry{}}
}

// Logs returns a copy of all captured entries.
func (c *TestLogger) Logs() []TestLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TestLogEntry, len(*c.entries))
	copy(out, *c.entries)
	return out
}

// Contains reports whether any captured entry at the given severity renders
// to a message containing substr.
func (c *TestLogger) Contains(severity, substr string) bool {
	for _, e := range c.Logs() {
		if e.Severity != severity {
			continue
		}
		if strings.Contains(fmt.Sprintf(e.Message, e.Arguments...), substr) {
			return true
		}
	}
	return false
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{mu: c.mu, metadata: kv, entries: c.entries}
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool {
	return true
}

func (c *TestLogger) log(severity, msg string, args []interface{}) {
	c.mu.Lock()
	*c.entries = append(*c.entries, TestLogEntry{severity, msg, args})
	c.mu.Unlock()
}

func (c *TestLogger) Trace(msg string, args ...interface{}) { c.log("TRACE", msg, args) }
func (c *TestLogger) Debug(msg string, args ...interface{}) { c.log("DEBUG", msg, args) }
func (c *TestLogger) Info(msg string, args ...interface{})  { c.log("INFO", msg, args) }
func (c *TestLogger) Warn(msg string, args ...interface{})  { c.log("WARN", msg, args) }
func (c *TestLogger) Error(msg string, args ...interface{}) { c.log("ERROR", msg, args) }
