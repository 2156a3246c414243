package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrUnsupportedHash    = errors.New("unsupported password hash")
	ErrStoreCorrupt       = errors.New("credential store corrupt")
)

// AccountLockedError reports a locked account. It matches ErrAccountLocked
// with errors.Is and discloses nothing but the wait.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked: too many failed attempts, try again in %d minutes", e.RemainingMinutes())
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

// RemainingMinutes rounds up so a caller is never told "0 minutes".
func (e *AccountLockedError) RemainingMinutes() int {
	m := int((e.Remaining + time.Minute - 1) / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}

// StoreCorruptError means the credential file could not be read or parsed.
// Line is 1-based; zero when the whole file is unreadable.
type StoreCorruptError struct {
	Path string
	Line int
	Err  error
}

func (e *StoreCorruptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("credential store %s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("credential store %s: %v", e.Path, e.Err)
}

func (e *StoreCorruptError) Unwrap() error { return e.Err }

func (e *StoreCorruptError) Is(target error) bool { return target == ErrStoreCorrupt }

// HumanAuthError is the text shown to the person at the login form.
func HumanAuthError(err error) string {
	var locked *AccountLockedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &locked):
		return fmt.Sprintf("Too many failed attempts. Try again in %d minutes.", locked.RemainingMinutes())
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, ErrWeakPassword):
		return "New password " + weakReason(err) + "."
	default:
		return "Authentication failed."
	}
}

func weakReason(err error) string {
	var w *WeakPasswordError
	if errors.As(err, &w) {
		return w.Reason
	}
	return "is too weak"
}

// WeakPasswordError carries the rule a new password broke.
type WeakPasswordError struct {
	Reason string
}

func (e *WeakPasswordError) Error() string { return "weak password: " + e.Reason }

func (e *WeakPasswordError) Is(target error) bool { return target == ErrWeakPassword }
