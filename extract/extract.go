package extract

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/upnext/models"
)

// Result is the outcome of one extraction run.
type Result struct {
	// Items is never nil so it always encodes as a JSON array.
	Items []models.Item

	// Tier is the strategy that produced Items, or TierNone.
	Tier Tier
}

// strategy is one tier of the fallback chain.
type strategy struct {
	tier    Tier
	applies func(*Snapshot) bool
	run     func(*Snapshot, *collector)
}

// rawMode reports whether only raw document text is available.
func rawMode(s *Snapshot) bool {
	return s.Document == nil && s.RawHTML != ""
}

var strategies = []strategy{
	{TierStructured, (*Snapshot).HasStructured, extractStructured},
	{TierDOM, func(s *Snapshot) bool { return s.Document != nil }, extractDOM},
	{TierHeading, rawMode, extractHeadingLinks},
	{TierRawLink, rawMode, extractRawLinks},
}

// Extract runs the tiers in priority order against snap and returns the
// items of the first tier that produced any. maxItems is clamped to
// models.MaxItems; zero or negative means models.MaxItems.
func Extract(snap *Snapshot, maxItems int) Result {
	if maxItems <= 0 || maxItems > models.MaxItems {
		maxItems = models.MaxItems
	}
	if snap == nil {
		return Result{Items: []models.Item{}, Tier: TierNone}
	}

	for _, st := range strategies {
		if !st.applies(snap) {
			continue
		}
		items, err := runTier(st, snap, maxItems)
		if err != nil {
			slog.Warn("extract: tier failed, falling through",
				"tier", st.tier, "video_id", snap.VideoID, "error", err)
			continue
		}
		if len(items) > 0 {
			return Result{Items: items, Tier: st.tier}
		}
		slog.Debug("extract: tier yielded nothing", "tier", st.tier, "video_id", snap.VideoID)
	}
	return Result{Items: []models.Item{}, Tier: TierNone}
}

// runTier executes one strategy behind a recover guard so that a fault
// inside a tier degrades to zero items.
func runTier(st strategy, snap *Snapshot, maxItems int) (items []models.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("panic in %s tier: %v", st.tier, r)
		}
	}()
	c := newCollector(maxItems, snap.VideoID)
	st.run(snap, c)
	return c.items, nil
}

// collector accumulates items in source order, dropping duplicates, the
// page's own video and ids of the wrong shape, and stops at the cap.
type collector struct {
	max   int
	self  string
	seen  map[string]struct{}
	items []models.Item
}

func newCollector(max int, self string) *collector {
	return &collector{
		max:   max,
		self:  self,
		seen:  make(map[string]struct{}, max),
		items: make([]models.Item, 0, max),
	}
}

// add appends it unless rejected. It returns false once the cap is reached
// so callers can stop scanning.
func (c *collector) add(it models.Item) bool {
	if c.full() {
		return false
	}
	if !models.ValidVideoID(it.ID) || it.ID == c.self {
		return true
	}
	if _, dup := c.seen[it.ID]; dup {
		return true
	}
	c.seen[it.ID] = struct{}{}
	c.items = append(c.items, it)
	return !c.full()
}

func (c *collector) full() bool {
	return len(c.items) >= c.max
}
