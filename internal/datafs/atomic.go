package datafs

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hnrobert/gatekeep/internal/logger"
)

var globalMu sync.Mutex
var fileMu = map[string]*sync.RWMutex{}

func muFor(path string) *sync.RWMutex {
	path = filepath.Clean(path)
	globalMu.Lock()
	defer globalMu.Unlock()
	if m := fileMu[path]; m != nil {
		return m
	}
	m := &sync.RWMutex{}
	fileMu[path] = m
	return m
}

// ReadFile reads path under its shared lock.
func ReadFile(path string) ([]byte, error) {
	m := muFor(path)
	m.RLock()
	defer m.RUnlock()
	return os.ReadFile(path)
}

// WriteFileAtomic replaces path with data. The bytes go to a temp file in the
// same directory which is synced and renamed over path, so readers see either
// the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	m := muFor(path)
	m.Lock()
	defer m.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".gatekeep-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		// A bind-mounted single file (docker -v users.txt:...) cannot be
		// replaced by rename. Rewrite in place; the write lock still keeps
		// in-process readers out.
		if errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EXDEV) || errors.Is(err, syscall.EPERM) {
			logger.Warn("WriteFileAtomic rename failed for %s (%v); falling back to in-place rewrite", path, err)
			return rewriteInPlace(path, data, perm)
		}
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func rewriteInPlace(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	_ = f.Sync()
	return f.Close()
}

// Remove deletes path under its write lock. A missing file is not an error.
func Remove(path string) error {
	m := muFor(path)
	m.Lock()
	defer m.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	m := muFor(path)
	m.RLock()
	defer m.RUnlock()
	_, err := os.Stat(path)
	return err == nil
}

func EnsureDir(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
