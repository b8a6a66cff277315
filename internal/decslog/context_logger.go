package decslog

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextLogger carries a fixed set of structured fields through a chain of
// handler calls, the way a single request/tick is threaded through the
// component, shard, system and gameloop services.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger creates a ContextLogger seeded with base fields.
func NewContextLogger(logger *logrus.Logger, fields map[string]interface{}) *ContextLogger {
	if logger == nil {
		logger = Logger
	}
	base := make(logrus.Fields, len(fields))
	for k, v := range fields {
		base[k] = v
	}
	return &ContextLogger{logger: logger, fields: base}
}

// ServiceLogger returns a logger pre-tagged with the service name, for use by
// one of the four cmd/ binaries.
func ServiceLogger(service string) *ContextLogger {
	return NewContextLogger(Logger, map[string]interface{}{"service": service})
}

func (cl *ContextLogger) clone() logrus.Fields {
	f := make(logrus.Fields, len(cl.fields))
	for k, v := range cl.fields {
		f[k] = v
	}
	return f
}

// WithField returns a derived logger with an additional field.
func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	f := cl.clone()
	f[key] = value
	return &ContextLogger{logger: cl.logger, fields: f}
}

// WithFields returns a derived logger with additional fields.
func (cl *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	f := cl.clone()
	for k, v := range fields {
		f[k] = v
	}
	return &ContextLogger{logger: cl.logger, fields: f}
}

// WithError attaches an error to the logger context.
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.WithField("error", err.Error())
}

// WithContext copies a request id out of ctx, if present.
func (cl *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	if cid := ctx.Value(cidKey{}); cid != nil {
		return cl.WithField("cid", cid)
	}
	return cl
}

type cidKey struct{}

// WithCID returns a context carrying a correlation id for logging.
func WithCID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, cidKey{}, cid)
}

func (cl *ContextLogger) Debug(msg string) { cl.logger.WithFields(cl.fields).Debug(msg) }
func (cl *ContextLogger) Info(msg string)  { cl.logger.WithFields(cl.fields).Info(msg) }
func (cl *ContextLogger) Warn(msg string)  { cl.logger.WithFields(cl.fields).Warn(msg) }
func (cl *ContextLogger) Error(msg string) { cl.logger.WithFields(cl.fields).Error(msg) }

// LogOperation runs fn and then logs its outcome, with duration, under
// operation: at error level if fn failed, at debug level otherwise.
func LogOperation(logger *ContextLogger, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	entry := logger.WithFields(map[string]interface{}{
		"operation":   operation,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("operation failed")
		return err
	}
	entry.Debug("operation completed")
	return nil
}
