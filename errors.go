package lookupd

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// Request errors
	ErrValidation   = errors.New("invalid input")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("you are not allowed to perform that action")

	// Data errors
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")

	// Dual-write errors
	ErrTransactionFailed = errors.New("dual-write transaction failed")
	ErrRollbackFailed    = errors.New("dual-write rollback failed")

	// Dependency errors
	ErrUnavailable        = errors.New("service unavailable")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrLockHeld           = errors.New("lock already held")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Message string
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%v (context: %+v)", msg, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{Err: err, Context: context}
}

// WithMessage wraps a sentinel with a caller-facing message. The sentinel
// stays visible to errors.Is; the message is what the HTTP layer renders.
func WithMessage(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{Err: err, Message: fmt.Sprintf(format, args...)}
}

// Message returns the caller-facing message for an error. Wrappers without
// a message (WithContext) are skipped, so the message survives further
// wrapping and debug context never leaks into responses.
func Message(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ec, ok := e.(*ErrorWithContext); ok && ec.Message != "" {
			return ec.Message
		}
	}
	return err.Error()
}

// Common error checking helpers

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a uniqueness conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if an error is a validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsTransactionFailure checks if an error came out of a dual-write saga
func IsTransactionFailure(err error) bool {
	return errors.Is(err, ErrTransactionFailed) || errors.Is(err, ErrRollbackFailed)
}
