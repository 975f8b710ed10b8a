// Package remote is the transport boundary to the device. Everything
// above it consumes the System interface; only this package knows how
// commands actually reach a device.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy of transport-level failures.
type ErrorKind int

const (
	// KindTransport means the device was unreachable or the command
	// could not be delivered at all. Includes timeouts.
	KindTransport ErrorKind = iota
	// KindRejected means the device received the command but refused
	// it (non-zero exit, permission denial).
	KindRejected
)

// Error wraps a device command failure with its kind and any output
// the device produced before failing.
type Error struct {
	Kind   ErrorKind
	Op     string // the command that failed, for diagnostics
	Output string
	Err    error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Output)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindTransport
}

// IsRejected reports whether the device refused the command.
func IsRejected(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindRejected
}

// System executes shell commands against one device. Implementations
// own the single connection for the duration of a run; callers never
// share a System between concurrent runs.
type System interface {
	// Shell runs a command in the device shell and returns its trimmed
	// combined output. Errors are always *Error.
	Shell(ctx context.Context, args ...string) (string, error)

	// Serial identifies the device this System is bound to.
	Serial() string
}
