package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultDepth is how many of a user's recent messages are kept.
	DefaultDepth = 3
	// DefaultRetention is how long an idle user stays in memory.
	DefaultRetention = 90 * 24 * time.Hour
)

// UserHistory is one user's entry in the conversation memory.
type UserHistory struct {
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
	LastSeen time.Time `json:"last_seen"`
}

// Message is a single remembered comment.
type Message struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Memory maps author ids to their bounded recent-message history. It is
// mutated only after a successful reply and persisted once per run.
type Memory struct {
	path      string
	depth     int
	retention time.Duration
	users     map[string]*UserHistory
	now       func() time.Time
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithDepth bounds the per-user message list.
func WithDepth(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.depth = n
		}
	}
}

// WithRetention sets the horizon past which idle users are dropped at load.
func WithRetention(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.retention = d
		}
	}
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty memory backed by the given path, without
// reading it. Used when the existing file is unreadable and the run should
// proceed without history.
func NewMemory(path string, opts ...MemoryOption) *Memory {
	m := &Memory{
		path:      path,
		depth:     DefaultDepth,
		retention: DefaultRetention,
		users:     make(map[string]*UserHistory),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenMemory loads the conversation memory from its JSON file, pruning users
// whose last interaction is past the retention horizon. A missing or empty
// file means an empty memory.
func OpenMemory(path string, opts ...MemoryOption) (*Memory, error) {
	m := NewMemory(path, opts...)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}
	if len(data) == 0 {
		return m, nil
	}

	if err := json.Unmarshal(data, &m.users); err != nil {
		return nil, fmt.Errorf("parse memory file: %w", err)
	}

	cutoff := m.now().Add(-m.retention)
	for id, user := range m.users {
		if user.lastActivity().Before(cutoff) {
			delete(m.users, id)
			continue
		}
		// A file written under a larger depth may carry longer histories.
		if len(user.Messages) > m.depth {
			user.Messages = user.Messages[len(user.Messages)-m.depth:]
		}
	}

	return m, nil
}

func (u *UserHistory) lastActivity() time.Time {
	last := u.LastSeen
	for _, msg := range u.Messages {
		if msg.At.After(last) {
			last = msg.At
		}
	}
	return last
}

// History returns up to depth most recent texts for the author, oldest
// first. Unseen authors get an empty slice.
func (m *Memory) History(authorID string) []string {
	user, ok := m.users[authorID]
	if !ok {
		return nil
	}
	texts := make([]string, 0, len(user.Messages))
	for _, msg := range user.Messages {
		texts = append(texts, msg.Text)
	}
	return texts
}

// RecordInteraction appends a comment to the author's history, truncating to
// the configured depth and stamping the interaction time.
func (m *Memory) RecordInteraction(authorID, name, text string) {
	now := m.now()

	user, ok := m.users[authorID]
	if !ok {
		user = &UserHistory{}
		m.users[authorID] = user
	}
	user.Name = name
	user.LastSeen = now
	user.Messages = append(user.Messages, Message{Text: text, At: now})
	if len(user.Messages) > m.depth {
		user.Messages = user.Messages[len(user.Messages)-m.depth:]
	}
}

// Len returns the number of remembered users.
func (m *Memory) Len() int {
	return len(m.users)
}

// Persist writes the full mapping to disk via a temp file and rename, so a
// crash never leaves a partial memory file behind.
func (m *Memory) Persist() error {
	data, err := json.MarshalIndent(m.users, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".memory-*")
	if err != nil {
		return fmt.Errorf("create temp memory file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp memory file: %w", err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}
