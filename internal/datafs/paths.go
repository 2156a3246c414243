package datafs

import (
	"os"
	"path/filepath"
	"strings"
)

// Well-known data directory entries.
const (
	UsersFile   = "users.txt"
	WelcomeFile = "WELCOME_CREDENTIALS.txt"
	LogsDir     = "logs"

	// DirName is shared with earlier releases so existing stores are picked up.
	DirName = ".ipfs-solana-manager"
)

// DefaultDir returns ~/.ipfs-solana-manager, falling back to the working
// directory when no home directory is known.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// LockPath is the sidecar file used for cross-process locking of path.
func LockPath(path string) string {
	return path + ".lock"
}
