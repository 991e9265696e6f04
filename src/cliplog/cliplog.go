package cliplog

import (
	"strings"
	"sync"
)

// Log is an ordered, duplicate-free buffer of clipboard snippets. It is safe for
// concurrent use; DrainAll is atomic with respect to Append.
type Log struct {
	mu      sync.Mutex
	entries []string
	seen    map[string]struct{}
}

func New() *Log {
	return &Log{seen: make(map[string]struct{})}
}

// Append stores the trimmed text unless it is empty or already present.
// It reports whether the buffer changed.
func (l *Log) Append(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	if _, dup := l.seen[text]; dup {
		return false
	}
	l.seen[text] = struct{}{}
	l.entries = append(l.entries, text)
	return true
}

// DrainAll joins every entry with a single space in insertion order and empties the buffer.
func (l *Log) DrainAll() string {
	return strings.Join(l.DrainEntries(), " ")
}

// DrainEntries empties the buffer and returns its entries in insertion order.
func (l *Log) DrainEntries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.entries
	l.entries = nil
	l.seen = make(map[string]struct{})
	return out
}

// Restore puts previously drained entries back in front of anything appended since,
// keeping their original order. A snippet that was logged again after the drain keeps only
// its original, earlier position.
func (l *Log) Restore(entries []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	restored := make(map[string]struct{}, len(entries))
	var merged []string
	for _, text := range entries {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if _, dup := restored[text]; dup {
			continue
		}
		restored[text] = struct{}{}
		merged = append(merged, text)
	}
	if len(merged) == 0 {
		return
	}
	for _, text := range l.entries {
		if _, dup := restored[text]; !dup {
			merged = append(merged, text)
		}
	}

	l.entries = merged
	l.seen = make(map[string]struct{}, len(merged))
	for _, text := range merged {
		l.seen[text] = struct{}{}
	}
}

func (l *Log) IsEmpty() bool {
	return l.Len() == 0
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot copies the current entries without draining them.
func (l *Log) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}
