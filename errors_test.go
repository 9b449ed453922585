package lookupd

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrValidation, ErrBadRequest, ErrUnauthorized, ErrForbidden,
		ErrNotFound, ErrConflict, ErrTransactionFailed, ErrRollbackFailed,
		ErrUnavailable, ErrBackendUnavailable, ErrLockHeld, ErrInvalidConfig,
	}
	for _, s := range sentinels {
		if s.Error() == "" {
			t.Error("sentinel with empty message")
		}
	}
}

func TestWithContext(t *testing.T) {
	err := WithContext(ErrNotFound, map[string]interface{}{
		"table": "countries",
		"id":    "abc",
	})

	if !errors.Is(err, ErrNotFound) {
		t.Error("WithContext should preserve the sentinel")
	}

	var ec *ErrorWithContext
	if !errors.As(err, &ec) {
		t.Fatal("expected *ErrorWithContext")
	}
	if ec.Context["table"] != "countries" {
		t.Errorf("context lost: %+v", ec.Context)
	}

	if WithContext(nil, nil) != nil {
		t.Error("WithContext(nil) should return nil")
	}
}

func TestWithMessage(t *testing.T) {
	err := WithMessage(ErrConflict, "country with name: %s already exists", "Norway")

	if !errors.Is(err, ErrConflict) {
		t.Error("WithMessage should preserve the sentinel")
	}
	if Message(err) != "country with name: Norway already exists" {
		t.Errorf("unexpected message: %q", Message(err))
	}

	// Wrapped further, the message still surfaces.
	wrapped := fmt.Errorf("create: %w", err)
	if Message(wrapped) != "country with name: Norway already exists" {
		t.Errorf("message lost through wrapping: %q", Message(wrapped))
	}
}

func TestMessageSkipsMessagelessWrappers(t *testing.T) {
	// A context wrapper around a messaged error must not shadow the
	// message; otherwise the debug context would leak to callers.
	err := WithContext(WithMessage(ErrTransactionFailed, "Transaction failed"), map[string]interface{}{
		"cause": "disk full",
	})
	if Message(err) != "Transaction failed" {
		t.Errorf("message = %q, want %q", Message(err), "Transaction failed")
	}
}

func TestMessageFallsBackToError(t *testing.T) {
	err := errors.New("plain failure")
	if Message(err) != "plain failure" {
		t.Errorf("unexpected message: %q", Message(err))
	}
}

func TestErrorHelpers(t *testing.T) {
	cases := []struct {
		name  string
		check func(error) bool
		err   error
		want  bool
	}{
		{"IsNotFound direct", IsNotFound, ErrNotFound, true},
		{"IsNotFound wrapped", IsNotFound, WithContext(ErrNotFound, nil), true},
		{"IsNotFound other", IsNotFound, ErrConflict, false},
		{"IsConflict", IsConflict, WithMessage(ErrConflict, "dup"), true},
		{"IsValidation", IsValidation, WithMessage(ErrValidation, "bad"), true},
		{"IsTransactionFailure transaction", IsTransactionFailure, ErrTransactionFailed, true},
		{"IsTransactionFailure rollback", IsTransactionFailure, ErrRollbackFailed, true},
		{"IsTransactionFailure other", IsTransactionFailure, ErrNotFound, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.check(tc.err); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrorWithContextUnwrap(t *testing.T) {
	inner := ErrBackendUnavailable
	err := WithContext(inner, map[string]interface{}{"addr": "localhost"})

	var ec *ErrorWithContext
	if !errors.As(err, &ec) {
		t.Fatal("expected *ErrorWithContext")
	}
	if ec.Unwrap() != inner {
		t.Error("Unwrap should return the wrapped error")
	}
}
