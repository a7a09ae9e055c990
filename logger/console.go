package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

var noColor = os.Getenv("TERM") == "dumb" ||
	(!isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()))

const (
	reset  = "\033[0m"
	gray   = "\033[1;90m"
	cyan   = "\033[36m"
	green  = "\033[32m"
	yellow = "\033[33m"
	red    = "\033[31m"
)

func color(val string) string {
	if isWindows || noColor {
		return ""
	}
	return val
}

type consoleLogger struct {
	mu       *sync.Mutex
	out      io.Writer
	logLevel LogLevel
	metadata map[string]interface{}
}

var _ Logger = (*consoleLogger)(nil)

// NewConsole returns a Logger that writes human-readable lines to stderr.
func NewConsole(level LogLevel) Logger {
	return &consoleLogger{
		mu:       &sync.Mutex{},
		out:      os.Stderr,
		logLevel: level,
	}
}

// NewConsoleWithWriter returns a console Logger writing to out.
func NewConsoleWithWriter(level LogLevel, out io.Writer) Logger {
	return &consoleLogger{
		mu:       &sync.Mutex{},
		out:      out,
		logLevel: level,
	}
}

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &consoleLogger{
		mu:       c.mu,
		out:      c.out,
		logLevel: c.logLevel,
		metadata: kv,
	}
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel
}

func (c *consoleLogger) write(level LogLevel, label, levelColor, msg string, args []interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	var sb strings.Builder
	sb.WriteString(color(gray))
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	sb.WriteString(color(reset))
	sb.WriteByte(' ')
	sb.WriteString(color(levelColor))
	sb.WriteString(fmt.Sprintf("%-5s", label))
	sb.WriteString(color(reset))
	sb.WriteByte(' ')
	sb.WriteString(fmt.Sprintf(msg, args...))
	if len(c.metadata) > 0 {
		keys := make([]string, 0, len(c.metadata))
		for k := range c.metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(color(gray))
			sb.WriteString(fmt.Sprintf(" %s=%v", k, c.metadata[k]))
			sb.WriteString(color(reset))
		}
	}
	sb.WriteByte('\n')
	c.mu.Lock()
	_, _ = io.WriteString(c.out, sb.String())
	c.mu.Unlock()
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) {
	c.write(LevelTrace, "TRACE", gray, msg, args)
}

func (c *consoleLogger) Debug(msg string, args ...interface{}) {
	c.write(LevelDebug, "DEBUG", cyan, msg, args)
}

func (c *consoleLogger) Info(msg string, args ...interface{}) {
	c.write(LevelInfo, "INFO", green, msg, args)
}

func (c *consoleLogger) Warn(msg string, args ...interface{}) {
	c.write(LevelWarn, "WARN", yellow, msg, args)
}

func (c *consoleLogger) Error(msg string, args ...interface{}) {
	c.write(LevelError, "ERROR", red, msg, args)
}
