package cache

import (
	"context"
	"sync"
	"time"

	"github.com/use-agent/upnext/models"
)

// DefaultTTL is how long a result stays servable.
const DefaultTTL = 5 * time.Minute

// Store is a result cache keyed by video id. Implementations are safe for
// concurrent use. A failing backend behaves like a miss.
type Store interface {
	Get(ctx context.Context, videoID string) ([]models.Item, bool)
	Put(ctx context.Context, videoID string, items []models.Item)
}

// AgedStore is a Store that reports how old a hit is and accepts entries
// that are already some age. Copying between tiers through it never extends
// an entry's lifetime.
type AgedStore interface {
	Store
	GetAged(ctx context.Context, videoID string) (items []models.Item, age time.Duration, ok bool)
	PutAged(ctx context.Context, videoID string, items []models.Item, age time.Duration)
}

// entry holds a cached result with its creation timestamp.
type entry struct {
	items     []models.Item
	createdAt time.Time
}

// Memory is an in-process Store. Entries are replaced wholesale on Put and
// are never patched.
type Memory struct {
	mu         sync.RWMutex
	store      map[string]*entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMaxEntries bounds the number of entries. Zero or negative means
// unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) { m.maxEntries = n }
}

// WithClock replaces the time source. Used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a Memory store. A ttl <= 0 selects DefaultTTL.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		store: make(map[string]*entry),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the items stored for videoID if they are younger than the TTL.
// An expired entry is reported as a miss but left in place until it is
// overwritten or swept.
func (m *Memory) Get(ctx context.Context, videoID string) ([]models.Item, bool) {
	items, _, ok := m.GetAged(ctx, videoID)
	return items, ok
}

// GetAged is Get that also reports the entry's age.
func (m *Memory) GetAged(_ context.Context, videoID string) ([]models.Item, time.Duration, bool) {
	m.mu.RLock()
	e, ok := m.store[videoID]
	m.mu.RUnlock()

	if !ok {
		return nil, 0, false
	}
	age := m.now().Sub(e.createdAt)
	if age > m.ttl {
		return nil, 0, false
	}
	return e.items, age, true
}

// Put stores items for videoID, replacing any previous entry. If the store
// is bounded and at capacity, a random entry is evicted to make room.
func (m *Memory) Put(ctx context.Context, videoID string, items []models.Item) {
	m.PutAged(ctx, videoID, items, 0)
}

// PutAged stores items as if they had been put age ago.
func (m *Memory) PutAged(_ context.Context, videoID string, items []models.Item, age time.Duration) {
	if age < 0 {
		age = 0
	}
	if items == nil {
		items = []models.Item{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := m.store[videoID]; !exists && m.maxEntries > 0 && len(m.store) >= m.maxEntries {
		for k := range m.store {
			delete(m.store, k)
			break
		}
	}

	m.store[videoID] = &entry{
		items:     items,
		createdAt: m.now().Add(-age),
	}
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// Sweep deletes entries older than the TTL and returns how many were removed.
func (m *Memory) Sweep() int {
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.store {
		if e.createdAt.Before(cutoff) {
			delete(m.store, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
