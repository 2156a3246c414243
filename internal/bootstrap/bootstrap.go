// Package bootstrap hands the generated first-run credentials to the
// operator through a one-time-readable file in the data directory.
package bootstrap

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hnrobert/gatekeep/internal/datafs"
	"github.com/hnrobert/gatekeep/internal/logger"
)

var ErrMalformedArtifact = errors.New("welcome credentials file is malformed")

const (
	usernamePrefix = "USERNAME:"
	passwordPrefix = "PASSWORD:"
)

type Credentials struct {
	Username string
	Password string
}

// Delivery owns WELCOME_CREDENTIALS.txt. Writes and the read-then-delete in
// RetrieveOnce run under an in-process mutex and an exclusive flock, so the
// credentials are handed out at most once.
type Delivery struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// New returns a Delivery for the welcome file inside dataDir.
func New(dataDir string) *Delivery {
	return NewAt(filepath.Join(dataDir, datafs.WelcomeFile))
}

func NewAt(path string) *Delivery {
	return &Delivery{path: path, now: time.Now}
}

func (d *Delivery) Path() string { return d.path }

// Deliver writes the artifact, replacing any earlier one.
func (d *Delivery) Deliver(username, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, err := datafs.Lock(d.path)
	if err != nil {
		return fmt.Errorf("lock %s: %w", d.path, err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := datafs.WriteFileAtomic(d.path, render(username, password, d.now()), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", d.path, err)
	}
	logger.Info("Welcome credentials saved to: %s", d.path)
	return nil
}

// RetrieveOnce returns the credentials and deletes the artifact. It returns
// nil, nil when there is nothing to retrieve. A file that cannot be parsed
// is left in place and ErrMalformedArtifact is returned.
func (d *Delivery) RetrieveOnce() (*Credentials, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, err := datafs.Lock(d.path)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", d.path, err)
	}
	defer func() { _ = lock.Unlock() }()

	b, err := datafs.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.path, err)
	}
	creds, err := parse(string(b))
	if err != nil {
		logger.Error("Welcome credentials at %s could not be parsed; leaving the file for the operator", d.path)
		return nil, err
	}
	if err := datafs.Remove(d.path); err != nil {
		return nil, fmt.Errorf("remove %s: %w", d.path, err)
	}
	logger.Info("Welcome credentials retrieved and deleted")
	return creds, nil
}

// Pending reports whether an artifact is waiting to be retrieved.
func (d *Delivery) Pending() bool {
	return datafs.Exists(d.path)
}

func render(username, password string, at time.Time) []byte {
	heavy := strings.Repeat("=", 70)
	light := strings.Repeat("-", 70)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n  IPFS SOLANA MANAGER - SECURE LOGIN CREDENTIALS\n%s\n\n", heavy, heavy)
	b.WriteString("IMPORTANT: SAVE THESE CREDENTIALS NOW!\n\n")
	b.WriteString("These credentials are randomly generated for maximum security.\n")
	b.WriteString("They will NOT be shown again. If you lose them, you'll need to\n")
	b.WriteString("delete the users.txt file and restart the application.\n\n")
	fmt.Fprintf(&b, "%s\n%s %s\n%s %s\n%s\n\n", light, usernamePrefix, username, passwordPrefix, password, light)
	b.WriteString("Write these down or save them in a password manager NOW!\n\n")
	fmt.Fprintf(&b, "Generated: %s\n%s\n", at.Format("2006-01-02 15:04:05"), heavy)
	return []byte(b.String())
}

func parse(text string) (*Credentials, error) {
	var c Credentials
	s := bufio.NewScanner(strings.NewReader(text))
	for s.Scan() {
		ln := strings.TrimSpace(s.Text())
		switch {
		case strings.HasPrefix(ln, usernamePrefix):
			c.Username = strings.TrimSpace(strings.TrimPrefix(ln, usernamePrefix))
		case strings.HasPrefix(ln, passwordPrefix):
			c.Password = strings.TrimSpace(strings.TrimPrefix(ln, passwordPrefix))
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	if c.Username == "" || c.Password == "" {
		return nil, ErrMalformedArtifact
	}
	return &c, nil
}
