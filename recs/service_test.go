package recs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/upnext/cache"
	"github.com/use-agent/upnext/extract"
	"github.com/use-agent/upnext/models"
)

// fakeEngine serves a fixed watch page and counts calls.
type fakeEngine struct {
	calls   atomic.Int32
	err     error
	panics  bool
	gate    chan struct{}
	related []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Fetch(ctx context.Context, id string) (*extract.Snapshot, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.panics {
		panic("renderer exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	entries := ""
	for i, rid := range f.related {
		if i > 0 {
			entries += ","
		}
		entries += fmt.Sprintf(`{"compactVideoRenderer":{"videoId":%q,"title":{"simpleText":"T %s"}}}`, rid, rid)
	}
	data := `{"contents":{"twoColumnWatchNextResults":{"secondaryResults":{"secondaryResults":{"results":[` + entries + `]}}}}}`
	return &extract.Snapshot{VideoID: id, InitialData: json.RawMessage(data)}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(eng *fakeEngine) (*Service, *clock) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := cache.NewMemory(5*time.Minute, cache.WithClock(clk.Now))
	return NewService(eng, store, 0), clk
}

func TestResolve_Validation(t *testing.T) {
	eng := &fakeEngine{}
	svc, _ := newTestService(eng)

	tests := []struct {
		raw  string
		code string
	}{
		{"", models.ErrCodeMissingVideoID},
		{"   ", models.ErrCodeMissingVideoID},
		{"ab", models.ErrCodeBadVideoID},
		{"abc de1", models.ErrCodeBadVideoID},
		{"abc$def", models.ErrCodeBadVideoID},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			_, err := svc.Resolve(context.Background(), tt.raw)
			var re *models.RecsError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.code, re.Code)
			assert.True(t, re.IsValidation())
		})
	}
	assert.Equal(t, int32(0), eng.calls.Load(), "validation failures never reach upstream")
}

func TestResolve_TrimsInput(t *testing.T) {
	eng := &fakeEngine{related: []string{"relate01"}}
	svc, _ := newTestService(eng)

	res, err := svc.Resolve(context.Background(), "  video001 ")
	require.NoError(t, err)
	assert.Equal(t, "relate01", res.Items[0].ID)
}

func TestResolve_CacheHitSkipsProvider(t *testing.T) {
	eng := &fakeEngine{related: []string{"relate01", "relate02"}}
	svc, clk := newTestService(eng)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "video001")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, extract.TierStructured, first.Tier)

	clk.Advance(4 * time.Minute)
	second, err := svc.Resolve(ctx, "video001")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, int32(1), eng.calls.Load())
}

func TestResolve_ExpiryReinvokesProvider(t *testing.T) {
	eng := &fakeEngine{related: []string{"relate01"}}
	svc, clk := newTestService(eng)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "video001")
	require.NoError(t, err)

	clk.Advance(5*time.Minute + time.Second)
	res, err := svc.Resolve(ctx, "video001")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int32(2), eng.calls.Load())
}

func TestResolve_EmptyResultIsCached(t *testing.T) {
	eng := &fakeEngine{}
	svc, _ := newTestService(eng)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, "video001")
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Equal(t, extract.TierNone, res.Tier)

	res, err = svc.Resolve(ctx, "video001")
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, int32(1), eng.calls.Load())
}

func TestResolve_ProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"classified scrape failure", models.NewRecsError(models.ErrCodeScrapeFailed, "nav", nil), models.ErrCodeScrapeFailed},
		{"classified internal", models.NewRecsError(models.ErrCodeInternal, "raw", nil), models.ErrCodeInternal},
		{"unclassified", errors.New("boom"), models.ErrCodeInternal},
		{"wrapped", fmt.Errorf("outer: %w", models.NewRecsError(models.ErrCodeScrapeFailed, "nav", nil)), models.ErrCodeScrapeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{err: tt.err}
			svc, _ := newTestService(eng)

			_, err := svc.Resolve(context.Background(), "video001")
			var re *models.RecsError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.code, re.Code)

			// Failures are not cached.
			_, _ = svc.Resolve(context.Background(), "video001")
			assert.Equal(t, int32(2), eng.calls.Load())
		})
	}
}

func TestResolve_PanicIsInternal(t *testing.T) {
	svc, _ := newTestService(&fakeEngine{panics: true})

	_, err := svc.Resolve(context.Background(), "video001")
	var re *models.RecsError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, models.ErrCodeInternal, re.Code)
}

func TestResolve_CoalescesConcurrentMisses(t *testing.T) {
	eng := &fakeEngine{related: []string{"relate01"}, gate: make(chan struct{})}
	svc, _ := newTestService(eng)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan *Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Resolve(context.Background(), "video001")
			if err == nil {
				results <- res
			}
		}()
	}

	// Let every caller reach the flight before the provider returns.
	require.Eventually(t, func() bool { return eng.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(eng.gate)
	wg.Wait()
	close(results)

	count := 0
	for res := range results {
		count++
		assert.Equal(t, "relate01", res.Items[0].ID)
	}
	assert.Equal(t, n, count)
	assert.Equal(t, int32(1), eng.calls.Load())
}

func TestResolve_CallerCancellation(t *testing.T) {
	eng := &fakeEngine{related: []string{"relate01"}, gate: make(chan struct{})}
	svc, _ := newTestService(eng)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Resolve(ctx, "video001")
		done <- err
	}()

	require.Eventually(t, func() bool { return eng.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	var re *models.RecsError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, models.ErrCodeInternal, re.Code)

	// The detached fetch still completes and fills the cache.
	close(eng.gate)
	require.Eventually(t, func() bool {
		res, err := svc.Resolve(context.Background(), "video001")
		return err == nil && res.Cached
	}, time.Second, 5*time.Millisecond)
}

func TestResolve_MaxItems(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("relate%02d", i)
	}
	eng := &fakeEngine{related: ids}
	store := cache.NewMemory(time.Minute)

	res, err := NewService(eng, store, 5).Resolve(context.Background(), "video001")
	require.NoError(t, err)
	assert.Len(t, res.Items, 5)

	res, err = NewService(eng, cache.NewMemory(time.Minute), 0).Resolve(context.Background(), "video001")
	require.NoError(t, err)
	assert.Len(t, res.Items, models.MaxItems)
}
