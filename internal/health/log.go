package health

import (
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// optionalLogger drops records when no logger was configured.
type optionalLogger struct {
	l *logging.Logger
}

func (o optionalLogger) Debug(msg string, fields ...zap.Field) {
	if o.l != nil {
		o.l.Debug(msg, fields...)
	}
}

func (o optionalLogger) Info(msg string, fields ...zap.Field) {
	if o.l != nil {
		o.l.Info(msg, fields...)
	}
}

func (o optionalLogger) Warn(msg string, fields ...zap.Field) {
	if o.l != nil {
		o.l.Warn(msg, fields...)
	}
}

func (o optionalLogger) Error(msg string, fields ...zap.Field) {
	if o.l != nil {
		o.l.Error(msg, fields...)
	}
}
