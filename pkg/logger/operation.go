package logger

import (
	"time"
)

// OperationLogger logs the steps of one named operation with its elapsed time
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
	now       func() time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger.WithComponent("operation"),
		operation: operation,
		fields:    make(Fields),
		now:       time.Now,
	}
	ol.startTime = ol.now()

	ol.logger.WithField("operation", operation).Debug("Starting operation")
	return ol
}

// WithField adds a field to the operation context
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

// WithFields adds multiple fields to the operation context
func (ol *OperationLogger) WithFields(fields Fields) *OperationLogger {
	for k, v := range fields {
		ol.fields[k] = v
	}
	return ol
}

func (ol *OperationLogger) snapshot(extra Fields) Fields {
	fields := Fields{"operation": ol.operation}
	for k, v := range ol.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

// Step logs a step within the operation
func (ol *OperationLogger) Step(step string) {
	ol.logger.WithFields(ol.snapshot(Fields{"step": step})).Debug("Operation step")
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	ol.logger.WithFields(ol.snapshot(Fields{
		"duration": ol.Elapsed().String(),
		"status":   "success",
	})).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	ol.logger.WithError(err).WithFields(ol.snapshot(Fields{
		"duration": ol.Elapsed().String(),
		"status":   "error",
	})).Error(message)
}

// Warning logs a warning during the operation
func (ol *OperationLogger) Warning(message string) {
	ol.logger.WithFields(ol.snapshot(nil)).Warn(message)
}

// Elapsed returns the time since the operation started
func (ol *OperationLogger) Elapsed() time.Duration {
	return ol.now().Sub(ol.startTime)
}

// TimedOperation executes fn and logs its outcome and duration
func TimedOperation(operation string, logger Logger, fn func() error) error {
	ol := NewOperationLogger(operation, logger)

	err := fn()

	if err != nil {
		ol.Error(err, "Operation failed")
	} else {
		ol.Success("Operation completed")
	}

	return err
}
