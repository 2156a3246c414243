package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnrobert/gatekeep/internal/auth"
	"github.com/hnrobert/gatekeep/internal/bootstrap"
	"github.com/hnrobert/gatekeep/internal/config"
	"github.com/hnrobert/gatekeep/internal/credstore"
)

func setupDataDir(t *testing.T, users string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvListen, "")
	t.Setenv(config.EnvLogDir, "")
	t.Setenv(config.EnvDataDir, dir)
	if users != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "users.txt"), []byte(users), 0o600))
	}
	return dir
}

func TestRun_NoCommand(t *testing.T) {
	setupDataDir(t, "")
	var out bytes.Buffer
	assert.Error(t, run(nil, os.Stdin, &out))
	assert.Contains(t, out.String(), "usage: gatekeepctl")
}

func TestRun_UnknownCommand(t *testing.T) {
	setupDataDir(t, "")
	var out bytes.Buffer
	assert.EqualError(t, run([]string{"frobnicate"}, os.Stdin, &out), `unknown command "frobnicate"`)
}

func TestRun_Users(t *testing.T) {
	setupDataDir(t, "alice:$2b$12$"+strings.Repeat("a", 53)+"\nold:"+strings.Repeat("ab", 32)+"\n")
	var out bytes.Buffer
	require.NoError(t, run([]string{"users"}, os.Stdin, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "alice")
	assert.Contains(t, lines[0], "bcrypt")
	assert.Contains(t, lines[1], "legacy-sha256")
}

func TestRun_Userdel(t *testing.T) {
	dir := setupDataDir(t, "alice:h1\nbob:h2\n")
	var out bytes.Buffer

	require.NoError(t, run([]string{"userdel", "bob"}, os.Stdin, &out))
	assert.Contains(t, out.String(), "Deleted user bob")

	assert.Error(t, run([]string{"userdel", "alice"}, os.Stdin, &out), "last user is kept")
	assert.ErrorIs(t, run([]string{"userdel", "carol"}, os.Stdin, &out), credstore.ErrUserNotFound)

	b, err := os.ReadFile(filepath.Join(dir, "users.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alice:h1\n", string(b))
}

func TestRun_Welcome(t *testing.T) {
	dir := setupDataDir(t, "")
	require.NoError(t, bootstrap.New(dir).Deliver("quietowl55", "abcdefghijklmnopqrst"))

	var out bytes.Buffer
	require.NoError(t, run([]string{"welcome"}, os.Stdin, &out))
	assert.Contains(t, out.String(), "USERNAME: quietowl55")
	assert.Contains(t, out.String(), "PASSWORD: abcdefghijklmnopqrst")

	out.Reset()
	require.NoError(t, run([]string{"welcome"}, os.Stdin, &out))
	assert.Contains(t, out.String(), "No first-run credentials are waiting.")
}

func TestRun_Passwd(t *testing.T) {
	dir := setupDataDir(t, "alice:h1\n")
	tty := openTerminal(t, "correct horse\ncorrect horse\n")

	var out bytes.Buffer
	require.NoError(t, run([]string{"passwd", "bob"}, tty, &out))
	assert.Contains(t, out.String(), "Created user bob")

	store := credstore.New(filepath.Join(dir, "users.txt"))
	require.NoError(t, store.Load())
	h, ok := store.Lookup("bob")
	require.True(t, ok)
	assert.True(t, auth.NewHasher().Verify("correct horse", h))
	assert.Equal(t, []string{"alice", "bob"}, store.Usernames())
}

func TestRun_PasswdRejectsBadUsername(t *testing.T) {
	setupDataDir(t, "")
	assert.ErrorIs(t, run([]string{"passwd", "a:b"}, os.Stdin, &bytes.Buffer{}), credstore.ErrInvalidUsername)
}
