package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/term"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

var (
	logFile     *os.File
	logDir      string
	currentDay  string
	logMu       sync.Mutex
	fileLogging bool

	out   io.Writer = os.Stdout
	color           = term.IsTerminal(int(os.Stdout.Fd()))
)

// Init enables file logging under dir. If dir is not already a "logs"
// directory, logs go to dir/logs. Files roll over daily as YYYY-MM-DD.log.
func Init(dir string) error {
	if dir == "" {
		return nil
	}
	resolved := dir
	if path.Base(filepath.ToSlash(dir)) != "logs" {
		resolved = filepath.Join(dir, "logs")
	}
	if err := os.MkdirAll(resolved, 0o700); err != nil {
		return err
	}

	logMu.Lock()
	defer logMu.Unlock()
	logDir = resolved
	fileLogging = true
	if err := rotateLocked(time.Now()); err != nil {
		fileLogging = false
		return err
	}
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	fileLogging = false
}

// SetOutput redirects console output and disables color. Passing nil
// restores stdout.
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	if w == nil {
		out = os.Stdout
		color = term.IsTerminal(int(os.Stdout.Fd()))
		return
	}
	out = w
	color = false
}

func Info(format string, args ...interface{}) {
	log(LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	log(LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	log(LevelError, format, args...)
}

func log(lvl Level, format string, args ...interface{}) {
	nowTime := time.Now()
	now := nowTime.Format("2006/01/02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	var label, colorStart string
	switch lvl {
	case LevelInfo:
		colorStart = "\033[32m" // Green
		label = "[INFO] "
	case LevelWarn:
		colorStart = "\033[33m" // Yellow
		label = "[WARN] "
	case LevelError:
		colorStart = "\033[31m" // Red
		label = "[EROR] "       // 4 chars align
	}

	logMu.Lock()
	defer logMu.Unlock()

	// File output (no color), with daily rollover
	if fileLogging {
		if err := rotateLocked(nowTime); err == nil && logFile != nil {
			_, _ = fmt.Fprintf(logFile, "%s %s%s\n", now, label, msg)
		}
	}

	if color {
		fmt.Fprintf(out, "%s %s%s\033[0m%s\n", now, colorStart, label, msg)
		return
	}
	fmt.Fprintf(out, "%s %s%s\n", now, label, msg)
}

func rotateLocked(t time.Time) error {
	if logDir == "" {
		return nil
	}
	day := t.Format("2006-01-02")
	if logFile != nil && currentDay == day {
		return nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	filePath := filepath.Join(logDir, day+".log")
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	logFile = f
	currentDay = day
	return nil
}
