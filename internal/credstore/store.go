package credstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/hnrobert/gatekeep/internal/auth"
	"github.com/hnrobert/gatekeep/internal/datafs"
	"github.com/hnrobert/gatekeep/internal/logger"
)

var ErrUserNotFound = errors.New("user not found")

const fileMode = 0o600

type Record struct {
	Username string
	Hash     string
}

// Store mirrors users.txt in memory. Reads are served from memory. Every
// mutation takes users.txt.lock, re-reads the file, rewrites it and only
// then updates the mirror.
type Store struct {
	path   string
	strict bool

	mu sync.RWMutex
	pf *parsedFile

	bootMu sync.Mutex
}

type Option func(*Store)

// WithStrict makes Load fail on malformed or duplicate lines instead of
// skipping them.
func WithStrict(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

func New(path string, opts ...Option) *Store {
	s := &Store{path: path, pf: &parsedFile{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Path() string { return s.path }

// Load replaces the in-memory mirror with the file's content. A missing file
// is an empty store.
func (s *Store) Load() error {
	pf, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pf = pf
	s.mu.Unlock()

	recs := pf.records()
	for _, r := range recs {
		if f, err := auth.ParseHash(r.Hash); err == nil {
			if _, modern := f.(auth.BcryptHash); !modern {
				logger.Warn("User %s has %s hash, will be migrated on next login", r.Username, f.Scheme())
			}
		} else {
			logger.Warn("User %s has an unrecognised password hash and cannot log in", r.Username)
		}
	}
	logger.Info("Loaded %d users from %s", len(recs), s.path)
	return nil
}

func (s *Store) read() (*parsedFile, error) {
	b, err := datafs.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &parsedFile{}, nil
	}
	if err != nil {
		return nil, &auth.StoreCorruptError{Path: s.path, Err: err}
	}
	lines, err := readLines(bytes.NewReader(b))
	if err != nil {
		return nil, &auth.StoreCorruptError{Path: s.path, Err: err}
	}

	pf := &parsedFile{}
	seen := make(map[string]*Record)
	for i, raw := range lines {
		trim := strings.TrimSpace(raw)
		if trim == "" {
			continue
		}
		if isComment(trim) {
			pf.lines = append(pf.lines, line{raw: raw})
			continue
		}
		rec, err := parseRecord(trim)
		if err != nil {
			if s.strict {
				return nil, &auth.StoreCorruptError{Path: s.path, Line: i + 1, Err: err}
			}
			logger.Warn("Skipping malformed line %d in %s: %v", i+1, s.path, err)
			continue
		}
		if prev, dup := seen[rec.Username]; dup {
			if s.strict {
				return nil, &auth.StoreCorruptError{Path: s.path, Line: i + 1, Err: fmt.Errorf("duplicate username %q", rec.Username)}
			}
			logger.Warn("Duplicate user %s on line %d in %s; the later entry wins", rec.Username, i+1, s.path)
			prev.Hash = rec.Hash
			continue
		}
		r := rec
		seen[r.Username] = &r
		pf.lines = append(pf.lines, line{record: &r})
	}
	return pf, nil
}

// Records returns a copy of the username to hash mapping.
func (s *Store) Records() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for _, r := range s.pf.records() {
		out[r.Username] = r.Hash
	}
	return out
}

// Usernames returns the usernames in file order.
func (s *Store) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.pf.records()
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Username)
	}
	return out
}

func (s *Store) Lookup(username string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.pf.find(username); r != nil {
		return r.Hash, true
	}
	return "", false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pf.records())
}

// Save rewrites the store so that it holds exactly records. Existing users
// keep their position and comments stay where they were; new users are
// appended in name order.
func (s *Store) Save(records map[string]string) error {
	for name, hash := range records {
		if !ValidUsername(name) {
			return fmt.Errorf("%w: %q", ErrInvalidUsername, name)
		}
		if !validHash(hash) {
			return fmt.Errorf("invalid hash for user %s", name)
		}
	}
	return s.update(func(pf *parsedFile) error {
		var kept []line
		placed := make(map[string]bool, len(records))
		for _, ln := range pf.lines {
			if ln.record == nil {
				kept = append(kept, ln)
				continue
			}
			hash, ok := records[ln.record.Username]
			if !ok {
				continue
			}
			placed[ln.record.Username] = true
			kept = append(kept, line{record: &Record{Username: ln.record.Username, Hash: hash}})
		}
		var added []string
		for name := range records {
			if !placed[name] {
				added = append(added, name)
			}
		}
		sort.Strings(added)
		for _, name := range added {
			kept = append(kept, line{record: &Record{Username: name, Hash: records[name]}})
		}
		pf.lines = kept
		return nil
	})
}

// SetHash creates username or replaces its hash. Other records are taken
// from the file as it is now, not from the last Load.
func (s *Store) SetHash(username, hash string) error {
	if !ValidUsername(username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if !validHash(hash) {
		return fmt.Errorf("invalid hash for user %s", username)
	}
	return s.update(setHash(username, hash))
}

// Delete removes username. It returns ErrUserNotFound if there is no such user.
func (s *Store) Delete(username string) error {
	return s.update(deleteUser(username))
}

func setHash(username, hash string) func(*parsedFile) error {
	return func(pf *parsedFile) error {
		if r := pf.find(username); r != nil {
			r.Hash = hash
			return nil
		}
		pf.lines = append(pf.lines, line{record: &Record{Username: username, Hash: hash}})
		return nil
	}
}

func deleteUser(username string) func(*parsedFile) error {
	return func(pf *parsedFile) error {
		if pf.find(username) == nil {
			return ErrUserNotFound
		}
		kept := pf.lines[:0]
		for _, ln := range pf.lines {
			if ln.record != nil && ln.record.Username == username {
				continue
			}
			kept = append(kept, ln)
		}
		pf.lines = kept
		return nil
	}
}

// update applies fn to a fresh read of users.txt while holding the
// cross-process lock, so edits made by other processes since Load survive.
func (s *Store) update(fn func(*parsedFile) error) error {
	lock, err := datafs.Lock(s.path)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer func() { _ = lock.Unlock() }()
	return s.updateLocked(fn)
}

// updateLocked is update for callers that already hold the file lock.
func (s *Store) updateLocked(fn func(*parsedFile) error) error {
	pf, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(pf); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(pf)
}

func (s *Store) commitLocked(next *parsedFile) error {
	if err := datafs.WriteFileAtomic(s.path, next.bytes(), fileMode); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	s.pf = next
	return nil
}
