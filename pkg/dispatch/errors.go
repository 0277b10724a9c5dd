package dispatch

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNilTask is returned when a nil task is submitted or killed
	ErrNilTask = errors.New("task cannot be nil")

	// ErrDuplicate is returned by SubmitAndWait when an equal task is already pending or running
	ErrDuplicate = errors.New("equal task already pending or running")

	// ErrInvalidPriority is returned when a priority name cannot be parsed
	ErrInvalidPriority = errors.New("priority must be one of critical, high, normal, low, redundant")

	// ErrCalledFromWorker is returned when a blocking call is made from inside a running task
	ErrCalledFromWorker = errors.New("blocking call from a dispatch worker would deadlock")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in task: %v", e.Value)
}

// Unwrap exposes the recovered value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
