package logx

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus with the key-value calling convention used
// throughout this codebase: Info/Warn/Error/Debug take a message followed
// by alternating key, value pairs.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a new Logger at the given level, tagged with component.
// An empty or unrecognized level falls back to "info".
func NewLogger(level, component string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)

	entry := logrus.NewEntry(base)
	if component != "" {
		entry = entry.WithField("component", component)
	}

	return &Logger{entry: entry}
}

// With returns a derived Logger carrying an additional field, useful for
// per-source or per-battery-set child loggers.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) fields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

// Debug logs at debug level with key-value pairs, e.g. buffer resize and
// period-inference diagnostics (spec.md section 6).
func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.entry.WithFields(l.fields(kv)).Debug(msg)
}

// Info logs at info level with key-value pairs.
func (l *Logger) Info(msg string, kv ...interface{}) {
	l.entry.WithFields(l.fields(kv)).Info(msg)
}

// Warn logs at warn level, used for drift-over-threshold and empty
// relevance window conditions (spec.md section 6).
func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.entry.WithFields(l.fields(kv)).Warn(msg)
}

// Error logs at error level, used for buffer-clamped-at-max conditions.
func (l *Logger) Error(msg string, kv ...interface{}) {
	l.entry.WithFields(l.fields(kv)).Error(msg)
}
