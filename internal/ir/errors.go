package ir

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind categorizes restage failures.
type ErrorKind string

const (
	// KindConfiguration covers bad axes, missing defaults, unknown families
	// and schema mismatches. Nothing has been run when it is returned.
	KindConfiguration ErrorKind = "CONFIGURATION"

	// KindCacheIntegrity means the backend holds contradictory rows, such as
	// two artifacts with the same source.
	KindCacheIntegrity ErrorKind = "CACHE_INTEGRITY"

	// KindExecution means an external process failed, timed out or a tool
	// output could not be parsed.
	KindExecution ErrorKind = "EXECUTION"
)

// Error is the structured error type returned across package boundaries.
type Error struct {
	Kind    ErrorKind
	Op      string // operation that failed, e.g. "artifact.lookup"
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration creates a KindConfiguration error.
func Configuration(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// CacheIntegrity creates a KindCacheIntegrity error.
func CacheIntegrity(op, format string, args ...any) *Error {
	return &Error{Kind: KindCacheIntegrity, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Execution wraps err as a KindExecution error.
func Execution(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindExecution, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Wrap classifies err under kind without adding a message.
func Wrap(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func isKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsConfiguration returns true if err is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfiguration(err error) bool {
	return isKind(err, KindConfiguration)
}

// IsCacheIntegrity returns true if err is a cache integrity error.
func IsCacheIntegrity(err error) bool {
	return isKind(err, KindCacheIntegrity)
}

// IsExecution returns true if err is an execution failure of any flavour.
func IsExecution(err error) bool {
	if isKind(err, KindExecution) {
		return true
	}
	var pe *ProcessError
	return errors.As(err, &pe)
}

// ProcessError describes an external process that did not finish cleanly.
type ProcessError struct {
	Command  string
	ExitCode int           // -1 when the process never exited
	Timeout  time.Duration // non-zero when the process was killed on timeout
	Stderr   string
	Err      error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s: %s timed out after %s", KindExecution, e.Command, e.Timeout)
	}
	msg := fmt.Sprintf("%s: %s exited with code %d", KindExecution, e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ErrZeroYield is reported (never returned as fatal) when an upstream run
// emits no particles. The executor stops repeating and keeps what it has.
var ErrZeroYield = errors.New("upstream run produced zero particles")
