// Package errors provides domain-specific error types for sockmud.
//
// The types mirror how the server reacts to a failure: transport and
// overflow errors close one connection, persistence errors are reported
// to the player before the connection closes, copyover errors go back
// to the administrator, and pool exhaustion is fatal.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotFound      = errors.New("not found")
	ErrCorrupt       = errors.New("corrupt record")
	ErrPoolExhausted = errors.New("object pool exhausted")
	ErrShutdown      = errors.New("server shutting down")
	ErrNoCopyover    = errors.New("copyover file not found")
)

// ── Structured error types ───────────────────────────────────────────

// TransportError represents a failure reading, writing, accepting or
// listening on a socket.
type TransportError struct {
	Op        string // operation: "listen", "accept", "read", "write"
	Addr      string // peer or listen address involved
	Err       error  // underlying error
	Retryable bool   // EAGAIN/EINTR style conditions
}

func (e *TransportError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *TransportError) Unwrap() error { return e.Err }

// OverflowError reports that an input or output accumulator would have
// grown past its bound.
type OverflowError struct {
	Dir   string // "input" or "output"
	Limit int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s overflow (limit %d bytes)", e.Dir, e.Limit)
}

// PersistenceError represents a failure loading or saving a player file.
type PersistenceError struct {
	Op   string // "load", "load-credentials", "save"
	Name string // player name
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CopyoverError represents a failed stage of a copyover.
type CopyoverError struct {
	Stage string // "open", "write", "exec", "recover"
	Err   error
}

func (e *CopyoverError) Error() string {
	return fmt.Sprintf("copyover %s: %v", e.Stage, e.Err)
}

func (e *CopyoverError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a TransportError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *TransportError {
	return &TransportError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// NotFound wraps ErrNotFound for the named player.
func NotFound(op, name string) *PersistenceError {
	return &PersistenceError{Op: op, Name: name, Err: ErrNotFound}
}

// Corrupt wraps ErrCorrupt with a description of what was wrong.
func Corrupt(op, name, format string, args ...interface{}) *PersistenceError {
	return &PersistenceError{
		Op:   op,
		Name: name,
		Err:  fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...)),
	}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return classifyRetryable(err)
}

// IsWouldBlock reports whether err is EAGAIN/EWOULDBLOCK from a
// non-blocking descriptor.
func IsWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsWouldBlock(err) || errors.Is(err, syscall.EINTR) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use sockmud/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
