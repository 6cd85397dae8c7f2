// Package store holds the bot's file-backed state: the answered-id ledger
// and the per-user conversation memory. Both files have a single writer (the
// run loop) and are read once at startup.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// AnsweredLog is the durable set of comment ids this bot has replied to or
// decided to skip permanently. On disk it is a line-delimited, append-only
// file; readers treat it as a set.
type AnsweredLog struct {
	path string
	ids  map[string]struct{}
	file *os.File
}

// OpenAnswered loads the ledger and opens it for appending. A missing file
// means an empty store, not an error.
func OpenAnswered(path string) (*AnsweredLog, error) {
	ids := make(map[string]struct{})

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read answered file: %w", err)
	}
	if err == nil {
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		for scanner.Scan() {
			if id := strings.TrimSpace(scanner.Text()); id != "" {
				ids[id] = struct{}{}
			}
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open answered file for append: %w", err)
	}

	return &AnsweredLog{path: path, ids: ids, file: file}, nil
}

// Has reports whether the id has already been handled.
func (l *AnsweredLog) Has(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// Record marks an id as handled, appending it to the backing file and
// flushing. Recording an id twice is a no-op.
func (l *AnsweredLog) Record(id string) error {
	if l.Has(id) {
		return nil
	}
	l.ids[id] = struct{}{}

	if _, err := l.file.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("append answered id: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync answered file: %w", err)
	}
	return nil
}

// Len returns the number of distinct ids in the ledger.
func (l *AnsweredLog) Len() int {
	return len(l.ids)
}

// Close closes the append handle.
func (l *AnsweredLog) Close() error {
	return l.file.Close()
}
