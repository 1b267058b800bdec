// Package ledger records the canonical links of posts that were already mirrored.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Adda-Baaj/nostr-mirror/internal/storage"
)

// StorageKey is the key the ledger is persisted under.
const StorageKey = "processed-posts"

// Ledger is an append-only set of canonical source links backed by a storage.Store.
type Ledger struct {
	store storage.Store

	mu    sync.RWMutex
	keys  map[string]struct{}
	order []string
	dirty bool
}

// New returns an empty ledger persisting to store. Call Load to restore saved state.
func New(store storage.Store) *Ledger {
	return &Ledger{
		store: store,
		keys:  make(map[string]struct{}),
	}
}

// Load merges the persisted set into memory. A missing or empty value is an empty set.
func (l *Ledger) Load() error {
	raw, err := l.store.Get(StorageKey)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}

	var links []string
	if err := json.Unmarshal(raw, &links); err != nil {
		return fmt.Errorf("decode ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, link := range links {
		l.addLocked(link)
	}
	return nil
}

// Contains reports whether link was already published.
func (l *Ledger) Contains(link string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[link]
	return ok
}

// Add records link. It returns false when the link was already present or blank.
func (l *Ledger) Add(link string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	added := l.addLocked(link)
	if added {
		l.dirty = true
	}
	return added
}

func (l *Ledger) addLocked(link string) bool {
	if strings.TrimSpace(link) == "" {
		return false
	}
	if _, ok := l.keys[link]; ok {
		return false
	}
	l.keys[link] = struct{}{}
	l.order = append(l.order, link)
	return true
}

// Persist writes the set to the store. It is a no-op when nothing changed since the last write.
func (l *Ledger) Persist() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return nil
	}

	raw, err := json.Marshal(l.order)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := l.store.Put(StorageKey, raw); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	l.dirty = false
	return nil
}

// Len returns the number of recorded links.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}
