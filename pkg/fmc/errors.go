package fmc

import (
	"errors"
	"fmt"
)

// ErrBusyTimeout is returned when the BUSY flag did not clear before the
// poll deadline. The caller may retry the operation.
var ErrBusyTimeout = errors.New("fmc: busy timeout")

// ErrNoEraser is returned by MassErase on an unlocked device when no chip
// eraser was configured.
var ErrNoEraser = errors.New("fmc: no chip eraser configured")

// UnrecoverableError reports a failure that left the option bytes in an
// undefined state. It must not be retried automatically.
type UnrecoverableError struct {
	Op    string
	State State
	Err   error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("unable to unlock device: %s failed in state %s: %v", e.Op, e.State, e.Err)
}

func (e *UnrecoverableError) Unwrap() error {
	return e.Err
}

// IsUnrecoverable reports whether err (or anything it wraps) is an
// UnrecoverableError.
func IsUnrecoverable(err error) bool {
	var ue *UnrecoverableError
	return errors.As(err, &ue)
}

// AccessError wraps a failed register access.
type AccessError struct {
	Op   string // "read16", "write32", ...
	Addr uint32
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("fmc: %s 0x%08X: %v", e.Op, e.Addr, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
