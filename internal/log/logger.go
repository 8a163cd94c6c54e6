// Package log is the leveled logger internal/pipeline and the CLI use to
// report what the reconstruction is doing: which section is being built,
// how many nodes were pruned as unreachable, which loops were found and
// whether each is irreducible, and the accumulated diagnostics. Adapted from the teacher's internal/log
// (same Logger interface, colorized/JSON DefaultLogger, package-level
// Default() singleton); LogDiagnostics is new, bridging internal/diag.Bag
// entries into this logger's levels.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cobolsharp/cobolsharp-go/internal/diag"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger interface defines structured logging methods
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	SetLevel(level Level)
	SetJSONOutput(enabled bool)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// DefaultLogger is the default implementation of Logger
type DefaultLogger struct {
	mu         sync.Mutex
	level      Level
	jsonOutput bool
	stdout     io.Writer
	stderr     io.Writer
	colors     bool
}

var (
	defaultLogger *DefaultLogger
	once          sync.Once
)

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *DefaultLogger {
	l := &DefaultLogger{
		level:      cfg.Level,
		jsonOutput: cfg.JSONOutput,
		stdout:     cfg.Stdout,
		stderr:     cfg.Stderr,
		colors:     isTerminal(cfg.Stderr),
	}

	// Default to os.Stdout/os.Stderr if not provided
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.stderr == nil {
		l.stderr = os.Stderr
	}

	return l
}

// Default returns the default logger instance
func Default() *DefaultLogger {
	once.Do(func() {
		defaultLogger = New(LoggerConfig{
			Level:  InfoLevel,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		})
	})
	return defaultLogger
}

// isTerminal reports whether w is an *os.File and isTTY holds; the file
// itself is not inspected.
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminalFD(f)
	}
	return false
}

// isTerminalFD defers to isTerminalPath with f's name.
func isTerminalFD(f *os.File) bool {
	return isTerminalPath(f.Name())
}

// isTerminalPath defers to isatty; path is not examined.
func isTerminalPath(path string) bool {
	return isatty()
}

// isatty defers to isTTY.
func isatty() bool {
	return isTTY()
}

// IsTTY reports isTTY's answer.
func IsTTY() bool {
	return isTTY()
}

// isTTY returns true unless running on Windows or NO_COLOR is set; it does
// not query whether stdout is a terminal.
func isTTY() bool {
	return runtime.GOOS != "windows" && IsTerminalWidth() > 0
}

// IsTerminalWidth returns 0 when NO_COLOR is set and 80 otherwise; it does
// not query the terminal.
func IsTerminalWidth() int {
	if os.Getenv("NO_COLOR") != "" {
		return 0
	}
	return 80 // Default assumption
}

// formatMessage formats the message with key-value args
func formatMessage(msg string, args ...interface{}) string {
	if len(args) == 0 {
		return msg
	}

	var sb strings.Builder
	sb.WriteString(msg)

	if len(args)%2 != 0 {
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprintf("%v", args[0]))
		args = args[1:]
	}

	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%v", args[i+1]))
	}

	return sb.String()
}

// colorize wraps the message with ANSI color codes if colors are enabled
func (l *DefaultLogger) colorize(level Level, msg string) string {
	if !l.colors {
		return msg
	}

	color := getColor(level)
	reset := "\033[0m"
	return color + msg + reset
}

// getColor returns the ANSI color code for the given level
func getColor(level Level) string {
	switch level {
	case DebugLevel:
		return "\033[36m" // Cyan
	case InfoLevel:
		return "\033[32m" // Green
	case WarnLevel:
		return "\033[33m" // Yellow
	case ErrorLevel:
		return "\033[31m" // Red
	default:
		return ""
	}
}

// write outputs the log message
func (l *DefaultLogger) write(level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	levelStr := level.String()

	if l.jsonOutput {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     levelStr,
			"message":   msg,
		}
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.stderr, string(data))
		return
	}

	// Formatted output with colors
	coloredMsg := l.colorize(level, msg)
	fmt.Fprintf(l.stderr, "[%s] %s: %s\n", timestamp, levelStr, coloredMsg)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	if l.level > DebugLevel {
		return
	}
	l.write(DebugLevel, formatMessage(msg, args...))
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	if l.level > InfoLevel {
		return
	}
	l.write(InfoLevel, formatMessage(msg, args...))
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	if l.level > WarnLevel {
		return
	}
	l.write(WarnLevel, formatMessage(msg, args...))
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	if l.level > ErrorLevel {
		return
	}
	l.write(ErrorLevel, formatMessage(msg, args...))
}

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetJSONOutput enables or disables JSON output
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jsonOutput = enabled
}

// LogDiagnostics reports every diagnostic in bag through l at the level
// matching its severity: fatal and warning diagnostics as Warn (a fatal
// one reaching here already aborted the pipeline and is reported
// separately as an error), info diagnostics (unreachable code) as Debug.
func LogDiagnostics(l Logger, sectionName string, bag *diag.Bag) {
	for _, d := range bag.All() {
		switch d.Severity {
		case diag.SeverityInfo:
			l.Debug(d.Message, "section", sectionName, "code", string(d.Code), "line", d.Span.Line)
		default:
			l.Warn(d.Message, "section", sectionName, "code", string(d.Code), "line", d.Span.Line)
		}
	}
}
