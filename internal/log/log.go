// Package log is the structured logger used by the HTTP service.
//
// Developer mode logs human readable text at debug level; otherwise entries
// are JSON at the configured level. Every helper takes an optional context so
// the request id assigned by the API middleware travels with the entry.
package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

type ctxKey struct{}

var logger = logrus.New()

// Initialize replaces the package logger. level is a logrus level name and is
// ignored in developer mode.
func Initialize(level string, developerMode bool) error {
	l, err := New(os.Stdout, level, developerMode)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// New builds a logger writing to out.
func New(out io.Writer, level string, developerMode bool) (*logrus.Logger, error) {
	l := logrus.New()
	l.Out = out

	if developerMode {
		l.Formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat}
		l.Level = logrus.DebugLevel
		return l, nil
	}

	lv := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lv = parsed
	}
	l.Formatter = &logrus.JSONFormatter{TimestampFormat: timestampFormat}
	l.Level = lv
	return l, nil
}

// Logger returns the current logger.
func Logger() *logrus.Logger {
	return logger
}

// SetLogger swaps the package logger, mostly for tests.
func SetLogger(l *logrus.Logger) {
	logger = l
}

// WithRequestID stores a request id on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored on ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func entry(ctx context.Context, fields map[string]interface{}) *logrus.Entry {
	e := logrus.NewEntry(logger).WithFields(fields)
	if id := RequestID(ctx); id != "" {
		e = e.WithField("req_id", id)
	}
	return e
}

// Debug logs at debug level.
func Debug(ctx context.Context, fields map[string]interface{}, format string, args ...interface{}) {
	entry(ctx, fields).Debugf(format, args...)
}

// Info logs at info level.
func Info(ctx context.Context, fields map[string]interface{}, format string, args ...interface{}) {
	entry(ctx, fields).Infof(format, args...)
}

// Warn logs at warning level.
func Warn(ctx context.Context, fields map[string]interface{}, format string, args ...interface{}) {
	entry(ctx, fields).Warnf(format, args...)
}

// Error logs at error level.
func Error(ctx context.Context, fields map[string]interface{}, format string, args ...interface{}) {
	entry(ctx, fields).Errorf(format, args...)
}

// LogAPIRequest records an inbound API call with its payload summary.
func LogAPIRequest(ctx context.Context, endpoint string, data map[string]interface{}) {
	fields := map[string]interface{}{
		"endpoint":  endpoint,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range data {
		fields[k] = v
	}
	Info(ctx, fields, "api request")
}
