package control

import (
	"sync"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
)

const defaultLogBufferSize = 200

// LogBuffer keeps the most recent log entries.
type LogBuffer struct {
	mu       sync.RWMutex
	capacity int
	entries  []domain.LogEntry
}

// NewLogBuffer returns a buffer holding at most capacity entries.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = defaultLogBufferSize
	}
	return &LogBuffer{capacity: capacity, entries: make([]domain.LogEntry, 0, capacity)}
}

// Add appends e, evicting the oldest entry when full.
func (b *LogBuffer) Add(e domain.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == b.capacity {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
	}
	b.entries = append(b.entries, e)
}

// Since returns a copy of the entries strictly newer than t.
func (b *LogBuffer) Since(t time.Time) []domain.LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.LogEntry, 0, len(b.entries))
	for _, e := range b.entries {
		if t.IsZero() || e.Time.After(t) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of buffered entries.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
