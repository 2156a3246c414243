package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLevels_WriteLabels(t *testing.T) {
	buf := captureOutput(t)

	Info("hello %s", "world")
	Warn("careful %d", 2)
	Error("broken: %v", "disk")

	out := buf.String()
	assert.Contains(t, out, "[INFO] hello world")
	assert.Contains(t, out, "[WARN] careful 2")
	assert.Contains(t, out, "[EROR] broken: disk")
	assert.NotContains(t, out, "\033[", "no color codes when writing to a buffer")
}

func TestInit_WritesDailyFile(t *testing.T) {
	captureOutput(t)
	dir := t.TempDir()

	require.NoError(t, Init(dir))
	t.Cleanup(Close)

	Info("persisted line")

	path := filepath.Join(dir, "logs", time.Now().Format("2006-01-02")+".log")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "[INFO] persisted line"), "got %q", string(b))
}

func TestInit_KeepsLogsDir(t *testing.T) {
	captureOutput(t)
	dir := filepath.Join(t.TempDir(), "logs")

	require.NoError(t, Init(dir))
	t.Cleanup(Close)

	_, err := os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err), "must not nest logs/logs")
}

func TestInit_EmptyDirIsNoop(t *testing.T) {
	require.NoError(t, Init(""))
}
