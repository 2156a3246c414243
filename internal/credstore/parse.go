package credstore

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	errNoColon       = errors.New("missing ':' separator")
	errEmptyUsername = errors.New("empty username")
	errEmptyHash     = errors.New("empty password hash")
)

// line is one line of users.txt. A comment keeps its raw text; a record
// keeps only the parsed fields and is re-rendered on save.
type line struct {
	raw    string
	record *Record
}

type parsedFile struct {
	lines []line
}

func (pf *parsedFile) records() []*Record {
	out := make([]*Record, 0, len(pf.lines))
	for i := range pf.lines {
		if pf.lines[i].record != nil {
			out = append(out, pf.lines[i].record)
		}
	}
	return out
}

func (pf *parsedFile) find(username string) *Record {
	for _, r := range pf.records() {
		if r.Username == username {
			return r
		}
	}
	return nil
}

func (pf *parsedFile) bytes() []byte {
	var b strings.Builder
	for _, ln := range pf.lines {
		if ln.record != nil {
			b.WriteString(ln.record.Username)
			b.WriteByte(':')
			b.WriteString(ln.record.Hash)
			b.WriteByte('\n')
			continue
		}
		b.WriteString(ln.raw)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func isComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "#")
}

// parseRecord splits a trimmed, non-comment line on its first colon.
func parseRecord(trimmed string) (Record, error) {
	name, hash, ok := strings.Cut(trimmed, ":")
	if !ok {
		return Record{}, errNoColon
	}
	name = strings.TrimSpace(name)
	hash = strings.TrimSpace(hash)
	if name == "" {
		return Record{}, errEmptyUsername
	}
	if hash == "" {
		return Record{}, errEmptyHash
	}
	return Record{Username: name, Hash: hash}, nil
}

func readLines(r io.Reader) ([]string, error) {
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)
	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
