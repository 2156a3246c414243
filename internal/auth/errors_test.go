package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountLockedError(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		minutes   int
	}{
		{remaining: 15 * time.Minute, minutes: 15},
		{remaining: 14*time.Minute + time.Second, minutes: 15},
		{remaining: 30 * time.Second, minutes: 1},
		{remaining: 0, minutes: 1},
	}
	for _, tt := range tests {
		err := error(&AccountLockedError{Remaining: tt.remaining})
		assert.ErrorIs(t, err, ErrAccountLocked)
		assert.Equal(t, tt.minutes, err.(*AccountLockedError).RemainingMinutes())
		assert.Contains(t, err.Error(), fmt.Sprintf("%d minutes", tt.minutes))
	}
}

func TestStoreCorruptError(t *testing.T) {
	inner := errors.New("missing colon")
	err := fmt.Errorf("load: %w", &StoreCorruptError{Path: "/d/users.txt", Line: 3, Err: inner})

	assert.ErrorIs(t, err, ErrStoreCorrupt)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "line 3")

	var sc *StoreCorruptError
	assert.True(t, errors.As(err, &sc))
	assert.Equal(t, "/d/users.txt", sc.Path)
}

func TestHumanAuthError(t *testing.T) {
	assert.Equal(t, "", HumanAuthError(nil))
	assert.Equal(t, "Invalid username or password.", HumanAuthError(ErrInvalidCredentials))
	assert.Equal(t, "Invalid username or password.", HumanAuthError(fmt.Errorf("login: %w", ErrInvalidCredentials)))
	assert.Equal(t, "Too many failed attempts. Try again in 3 minutes.",
		HumanAuthError(&AccountLockedError{Remaining: 150 * time.Second}))
	assert.Equal(t, "New password must be at least 6 characters.",
		HumanAuthError(&WeakPasswordError{Reason: "must be at least 6 characters"}))
	assert.Equal(t, "Authentication failed.", HumanAuthError(errors.New("disk on fire")))
}
