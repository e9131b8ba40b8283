// Package logging adapts hclog to the sanity.Logger interface.
package logging

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/nc9/sanity-go/internal/constants"
)

// Name is the logger name, shown as "[sanity]" style prefix in output.
const Name = "sanity"

// Logger implements sanity.Logger on top of an hclog.Logger.
type Logger struct {
	hc hclog.Logger
}

// New creates a logger writing to out at level (DEBUG, INFO, WARN, ERROR).
// A nil out writes to stderr; an unknown level falls back to INFO.
func New(level string, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}

	return &Logger{hc: hclog.New(&hclog.LoggerOptions{
		Name:   Name,
		Level:  ParseLevel(level),
		Output: out,
	})}
}

// NewNull returns a logger that discards everything.
func NewNull() *Logger {
	return &Logger{hc: hclog.NewNullLogger()}
}

// ParseLevel maps a SANITY_LOG_LEVEL value to an hclog level.
func ParseLevel(level string) hclog.Level {
	if strings.TrimSpace(level) == "" {
		level = constants.DefaultLogLevel
	}

	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "WARNING":
		return hclog.Warn
	case "CRITICAL", "FATAL":
		return hclog.Error
	}

	l := hclog.LevelFromString(level)
	if l == hclog.NoLevel {
		return hclog.Info
	}

	return l
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.hc.Debug(msg, args(fields)...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.hc.Info(msg, args(fields)...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.hc.Warn(msg, args(fields)...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.hc.Error(msg, args(fields)...)
}

// args flattens fields into key/value pairs in key order.
func args(fields map[string]interface{}) []interface{} {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		out = append(out, k, fields[k])
	}

	return out
}
