package requestlog

import (
	"sync"
	"time"

	"github.com/mocknest/mocknest/internal/id"
)

// MemoryStore is a thread-safe in-memory Store with FIFO eviction.
// It backs tests and ephemeral deployments; durable tenants use the
// SQLite-backed store.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []*Entry
	maxEntries int
}

// DefaultMemoryCapacity bounds a MemoryStore when no capacity is given.
const DefaultMemoryCapacity = 1000

// NewMemoryStore creates a MemoryStore holding up to maxEntries entries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryCapacity
	}
	return &MemoryStore{
		entries:    make([]*Entry, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Append records an entry, assigning an id and timestamp when unset.
func (s *MemoryStore) Append(entry *Entry) error {
	if entry == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = id.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if len(s.entries) >= s.maxEntries {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
	return nil
}

// List returns entries newest-first, bounded by q.
func (s *MemoryStore) List(q Query) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if q.EndpointID != "" && e.EndpointID != q.EndpointID {
			continue
		}
		if q.BeforeID != "" && e.ID >= q.BeforeID {
			continue
		}
		result = append(result, e)
		if q.Limit > 0 && len(result) >= q.Limit {
			break
		}
	}
	return result, nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
	return nil
}

// Prune removes entries older than the cutoff.
func (s *MemoryStore) Prune(olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

var _ Store = (*MemoryStore)(nil)
