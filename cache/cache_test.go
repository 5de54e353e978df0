package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/upnext/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func items(ids ...string) []models.Item {
	out := make([]models.Item, len(ids))
	for i, id := range ids {
		out[i] = models.NewItem(id, "", "", "")
	}
	return out
}

func TestMemory_GetWithinTTL(t *testing.T) {
	clock := newFakeClock()
	m := NewMemory(5*time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	_, ok := m.Get(ctx, "video001")
	assert.False(t, ok)

	m.Put(ctx, "video001", items("relate01", "relate02"))
	clock.Advance(4*time.Minute + 59*time.Second)

	got, ok := m.Get(ctx, "video001")
	require.True(t, ok)
	assert.Equal(t, items("relate01", "relate02"), got)
}

func TestMemory_ExpiredIsMissButKept(t *testing.T) {
	clock := newFakeClock()
	m := NewMemory(5*time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	m.Put(ctx, "video001", items("relate01"))
	clock.Advance(5*time.Minute + time.Second)

	_, ok := m.Get(ctx, "video001")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len(), "Get must not evict")

	m.Put(ctx, "video001", items("relate02"))
	got, ok := m.Get(ctx, "video001")
	require.True(t, ok)
	assert.Equal(t, "relate02", got[0].ID)
}

func TestMemory_EmptyResultIsCached(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()

	m.Put(ctx, "video001", nil)
	got, ok := m.Get(ctx, "video001")
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMemory_MaxEntries(t *testing.T) {
	m := NewMemory(time.Minute, WithMaxEntries(3))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		m.Put(ctx, fmt.Sprintf("video%03d", i), items("relate01"))
	}
	assert.Equal(t, 3, m.Len())

	// Overwriting an existing key never evicts.
	m.Put(ctx, "video009", items("relate02"))
	assert.Equal(t, 3, m.Len())
	got, ok := m.Get(ctx, "video009")
	require.True(t, ok)
	assert.Equal(t, "relate02", got[0].ID)
}

func TestMemory_UnboundedByDefault(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		m.Put(ctx, fmt.Sprintf("video%03d", i), nil)
	}
	assert.Equal(t, 500, m.Len())
}

func TestMemory_Sweep(t *testing.T) {
	clock := newFakeClock()
	m := NewMemory(time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	m.Put(ctx, "oldvideo", items("relate01"))
	clock.Advance(2 * time.Minute)
	m.Put(ctx, "newvideo", items("relate02"))

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
	_, ok := m.Get(ctx, "newvideo")
	assert.True(t, ok)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory(time.Minute, WithMaxEntries(16))
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("video%03d", (g*31+i)%40)
				m.Put(ctx, id, items("relate01"))
				m.Get(ctx, id)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 16)
}

func TestMemory_RunSweeperStops(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestMemory_PutAged(t *testing.T) {
	clk := newFakeClock()
	m := NewMemory(5*time.Minute, WithClock(clk.Now))
	ctx := context.Background()

	m.PutAged(ctx, "video001", items("relate01"), 4*time.Minute)
	_, age, ok := m.GetAged(ctx, "video001")
	require.True(t, ok)
	assert.Equal(t, 4*time.Minute, age)

	clk.Advance(time.Minute + time.Second)
	_, ok = m.Get(ctx, "video001")
	assert.False(t, ok)
}
