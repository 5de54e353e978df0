package scraper

import (
	"log/slog"
	"time"

	"github.com/use-agent/upnext/config"
	"github.com/use-agent/upnext/models"
)

// Scraper renders watch pages in the shared browser session and turns them
// into extraction snapshots. It is safe for concurrent use.
type Scraper struct {
	manager    *Manager
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
}

// NewScraper creates a Scraper. The browser itself starts lazily on the
// first Snapshot call.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) *Scraper {
	return &Scraper{
		manager:    NewManager(browserCfg),
		browserCfg: browserCfg,
		scraperCfg: withDefaults(scraperCfg),
	}
}

// totalMargin is the slack on top of the phase timeouts for page setup and
// the final reads.
const totalMargin = 5 * time.Second

// withDefaults fills unset timeouts. The total deadline covers every phase
// so a render can never outlive it.
func withDefaults(cfg config.ScraperConfig) config.ScraperConfig {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 20 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 12 * time.Second
	}
	if cfg.CardsTimeout <= 0 {
		cfg.CardsTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = cfg.NavigationTimeout + cfg.ReadyTimeout + cfg.CardsTimeout + totalMargin
	}
	return cfg
}

// Stats returns a snapshot of the session's current state.
func (s *Scraper) Stats() models.SessionStats {
	return s.manager.Stats()
}

// Close kills the browser process if one was started.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down")
	s.manager.Close()
	slog.Info("scraper shutdown complete")
}
