package cache

import (
	"context"

	"github.com/use-agent/upnext/models"
)

// Tiered checks a fast local store before a shared one. A hit in the shared
// store is copied into the local one with its original age, so the copy
// expires when the shared entry does.
type Tiered struct {
	L1 AgedStore
	L2 AgedStore
}

// NewTiered returns a Store layering l1 over l2.
func NewTiered(l1, l2 AgedStore) *Tiered {
	return &Tiered{L1: l1, L2: l2}
}

func (t *Tiered) Get(ctx context.Context, videoID string) ([]models.Item, bool) {
	if items, ok := t.L1.Get(ctx, videoID); ok {
		return items, true
	}
	items, age, ok := t.L2.GetAged(ctx, videoID)
	if !ok {
		return nil, false
	}
	t.L1.PutAged(ctx, videoID, items, age)
	return items, true
}

func (t *Tiered) Put(ctx context.Context, videoID string, items []models.Item) {
	t.L1.Put(ctx, videoID, items)
	t.L2.Put(ctx, videoID, items)
}
