package engine

import (
	"context"
	"fmt"
	"net/url"

	"github.com/use-agent/upnext/extract"
)

// Engine is the interface that all page source providers must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "browser", "auto").
	Name() string

	// Fetch produces a snapshot of the watch page for videoID. The returned
	// error carries a *models.RecsError code when the engine can classify it.
	Fetch(ctx context.Context, videoID string) (*extract.Snapshot, error)
}

// Upstream page parameters.
const (
	watchBase     = "https://www.youtube.com/watch"
	DefaultLocale = "en"
	DefaultRegion = "US"
)

// WatchURL builds the watch page URL for videoID with locale and region
// pinned so markup and labels are stable. Empty hl/gl select the defaults.
func WatchURL(videoID, hl, gl string) string {
	return watchURLAt(watchBase, videoID, hl, gl)
}

func watchURLAt(base, videoID, hl, gl string) string {
	if hl == "" {
		hl = DefaultLocale
	}
	if gl == "" {
		gl = DefaultRegion
	}
	return fmt.Sprintf("%s?v=%s&hl=%s&gl=%s&persist_hl=1&persist_gl=1",
		base, url.QueryEscape(videoID), url.QueryEscape(hl), url.QueryEscape(gl))
}
