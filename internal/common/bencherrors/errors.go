// Package bencherrors contains the error classes raised by the benchmark.
//
// Only ErrConfig and ErrGeneration abort a run (or a worker). ErrOperation and ErrTimeout are
// produced at the worker boundary, recorded as failed operations and never unwind further.
// Wrapping with github.com/pkg/errors is fine; classification uses errors.As on the whole chain.
package bencherrors

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrConfig is returned when the configuration is inconsistent. It is only raised before any
// worker starts.
type ErrConfig struct {
	// Name of the offending field, e.g., "operationProportion"
	Field string
	// The invalid value that was provided
	Value interface{}
	// An optional message explaining why the value is invalid
	Message string
}

func (err *ErrConfig) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", fmt.Sprint(err.Value), err.Field)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", fmt.Sprint(err.Value), err.Field, err.Message)
}

// ErrOperation represents a failed call against the target database.
type ErrOperation struct {
	// Operation kind, e.g., "INGESTION"
	Operation string
	// The variant of the operation, e.g., an aggregate function name
	Variant string
	Cause   error
}

func (err *ErrOperation) Error() string {
	if err.Variant != "" {
		return fmt.Sprintf("operation %s (%s) failed: %v", err.Operation, err.Variant, err.Cause)
	}
	return fmt.Sprintf("operation %s failed: %v", err.Operation, err.Cause)
}

func (err *ErrOperation) Unwrap() error {
	return err.Cause
}

// ErrTimeout is returned when an operation exceeded its deadline and was cancelled.
type ErrTimeout struct {
	Operation string
	Timeout   time.Duration
	Elapsed   time.Duration
}

func (err *ErrTimeout) Error() string {
	return fmt.Sprintf("operation %s timed out after %s (deadline %s)", err.Operation, err.Elapsed, err.Timeout)
}

// ErrGeneration is returned when the workload cannot be generated, e.g., because of an
// unsupported overflow mode. It is fatal to the worker that hits it.
type ErrGeneration struct {
	Message string
}

func (err *ErrGeneration) Error() string {
	return "workload generation failed: " + err.Message
}

// NewConfigError returns an ErrConfig carrying a stack trace.
func NewConfigError(field string, value interface{}, format string, args ...interface{}) error {
	return errors.WithStack(&ErrConfig{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

// NewGenerationError returns an ErrGeneration carrying a stack trace.
func NewGenerationError(format string, args ...interface{}) error {
	return errors.WithStack(&ErrGeneration{Message: fmt.Sprintf(format, args...)})
}

// IsFatal reports whether err must abort the run, as opposed to being absorbed into metrics.
// Uses errors.As to look through the chain of errors.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	{
		var e *ErrConfig
		if errors.As(err, &e) {
			return true
		}
	}
	{
		var e *ErrGeneration
		if errors.As(err, &e) {
			return true
		}
	}
	return false
}

// IsTimeout reports whether err is, or wraps, an ErrTimeout.
func IsTimeout(err error) bool {
	var e *ErrTimeout
	return errors.As(err, &e)
}
