package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/use-agent/upnext/extract"
	"github.com/use-agent/upnext/models"
)

// RodFetchFunc is the callback type that wraps scraper.Scraper.Snapshot.
// It is injected from main.go to avoid a circular import (engine/ -> scraper/).
type RodFetchFunc func(ctx context.Context, videoID string) (*extract.Snapshot, error)

// RodEngine renders the watch page in the shared browser session via a
// callback function.
type RodEngine struct {
	fetchFunc RodFetchFunc
}

// NewRodEngine creates a RodEngine around fetchFunc.
func NewRodEngine(fetchFunc RodFetchFunc) *RodEngine {
	return &RodEngine{fetchFunc: fetchFunc}
}

func (e *RodEngine) Name() string { return "browser" }

// Fetch renders the page. Any failure is reported as a scrape failure
// unless the callback already classified it.
func (e *RodEngine) Fetch(ctx context.Context, videoID string) (*extract.Snapshot, error) {
	if e.fetchFunc == nil {
		return nil, models.NewRecsError(models.ErrCodeInternal, "browser engine not configured", nil)
	}

	snap, err := e.fetchFunc(ctx, videoID)
	if err != nil {
		var re *models.RecsError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, models.NewRecsError(models.ErrCodeScrapeFailed, "render failed",
			fmt.Errorf("%s: %w", e.Name(), err))
	}
	if snap == nil {
		return nil, models.NewRecsError(models.ErrCodeScrapeFailed, "render produced no snapshot", nil)
	}
	if snap.VideoID == "" {
		snap.VideoID = videoID
	}
	return snap, nil
}
