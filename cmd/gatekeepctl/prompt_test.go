package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTerminal returns the tty side of a fresh pty and feeds input into it.
func openTerminal(t *testing.T, input string) *os.File {
	t.Helper()
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tty.Close()
		_ = ptmx.Close()
	})
	go func() { _, _ = io.Copy(io.Discard, ptmx) }()
	_, err = ptmx.Write([]byte(input))
	require.NoError(t, err)
	return tty
}

func TestPromptNewPassword_Terminal(t *testing.T) {
	tty := openTerminal(t, "hunter22\nhunter22\n")
	var out bytes.Buffer

	pw, err := promptNewPassword(tty, &out, 6)
	require.NoError(t, err)
	assert.Equal(t, "hunter22", pw)
	assert.Contains(t, out.String(), "New password: ")
	assert.Contains(t, out.String(), "Repeat password: ")
	assert.NotContains(t, out.String(), "hunter22")
}

func TestPromptNewPassword_Mismatch(t *testing.T) {
	tty := openTerminal(t, "hunter22\nhunter23\n")
	_, err := promptNewPassword(tty, io.Discard, 6)
	assert.EqualError(t, err, "passwords do not match")
}

func TestPromptNewPassword_TooShort(t *testing.T) {
	tty := openTerminal(t, "abc\n")
	_, err := promptNewPassword(tty, io.Discard, 6)
	assert.EqualError(t, err, "password must be at least 6 characters")
}

func TestPromptNewPassword_NotTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	defer f.Close()

	_, err = promptNewPassword(f, io.Discard, 6)
	assert.ErrorIs(t, err, errNotTerminal)
}
