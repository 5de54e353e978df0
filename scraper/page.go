package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/goccy/go-json"
	"github.com/ysmood/gson"

	"github.com/use-agent/upnext/engine"
	"github.com/use-agent/upnext/extract"
	"github.com/use-agent/upnext/models"
)

// Scripts evaluated in the rendered page.
const (
	readyJS = `() => !!(window.ytInitialData && window.ytInitialData.contents)`

	initialDataJS = `() => {
		try {
			return window.ytInitialData ? JSON.stringify(window.ytInitialData) : "";
		} catch (e) {
			return "";
		}
	}`

	cardsSelector = "ytd-compact-video-renderer, yt-lockup-view-model, ytd-compact-radio-renderer"
)

// Snapshot renders the watch page for videoID and captures everything the
// extraction engine can use.
//
// Lifecycle (numbered steps match the inline comments):
//
//  0. Deadline         – one total timeout covers every step below
//  1. Acquire page      – fresh page in the shared context
//  2. DEFER: cleanup    – close the page on every path
//  3. Headers           – Referer for the watch page
//  4. Hijack mount      – block images/CSS/fonts/media (before navigation!)
//  5. Navigate          – hard deadline, failure is fatal
//  6. Readiness wait    – soft wait for the in-page data object
//  7. Read data object  – serialized in the page, under ReadTimeout
//  8. Cards wait        – soft, only when the data object is missing
//  9. Render tree       – page.HTML() under ReadTimeout, parsed into a goquery document
//
// Steps 3-4 MUST happen before step 5: headers and resource blocking only
// apply to navigations started after they are installed. Step 2 closes the
// ORIGINAL page reference (without request context), so cleanup succeeds
// even if the request context has expired.
func (s *Scraper) Snapshot(ctx context.Context, videoID string) (*extract.Snapshot, error) {
	cfg := withDefaults(s.scraperCfg)

	// ── 0. Overall deadline ──────────────────────────────────────────
	// Callers may hand in a context without one (coalesced fetches are
	// detached), so the render bounds itself.
	ctx, cancel := context.WithTimeout(ctx, cfg.TotalTimeout)
	defer cancel()

	// ── 1. Acquire page ──────────────────────────────────────────────
	page, err := s.manager.AcquirePage(ctx)
	if err != nil {
		return nil, categorizeError(err, "browser session unavailable")
	}

	// ── 2. CRITICAL DEFER: page is closed whatever happens below ─────
	defer s.manager.ReleasePage(page)

	// ── 3. Extra headers ─────────────────────────────────────────────
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Referer": "https://www.youtube.com/"}),
	}.Call(page.Context(ctx))

	// ── 4. Mount hijack router ───────────────────────────────────────
	router := setupHijack(page, cfg.BlockedResourceTypes, cfg.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 5. Navigate under a hard deadline ────────────────────────────
	url := engine.WatchURL(videoID, s.browserCfg.Locale, s.browserCfg.Region)
	navCtx, navCancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
	err = page.Context(navCtx).Navigate(url)
	navCancel()
	if err != nil {
		return nil, categorizeError(err, "navigation to watch page failed")
	}

	// ── 6. Readiness wait (soft) ─────────────────────────────────────
	readyCtx, readyCancel := context.WithTimeout(ctx, cfg.ReadyTimeout)
	if err := page.Context(readyCtx).Wait(rod.Eval(readyJS)); err != nil {
		slog.Debug("data object not ready, continuing", "video_id", videoID, "error", err)
	}
	readyCancel()

	// ── 7. Read the data object ──────────────────────────────────────
	var initialData json.RawMessage
	evalCtx, evalCancel := context.WithTimeout(ctx, cfg.ReadTimeout)
	if raw := evalStringOrEmpty(page.Context(evalCtx), initialDataJS); raw != "" && json.Valid([]byte(raw)) {
		initialData = json.RawMessage(raw)
	}
	evalCancel()

	// ── 8. Cards wait (soft) ─────────────────────────────────────────
	if initialData == nil {
		cardsCtx, cardsCancel := context.WithTimeout(ctx, cfg.CardsTimeout)
		if err := page.Context(cardsCtx).WaitElementsMoreThan(cardsSelector, 0); err != nil {
			slog.Debug("no recommendation cards rendered, continuing", "video_id", videoID, "error", err)
		}
		cardsCancel()
	}

	// ── 9. Render tree ───────────────────────────────────────────────
	htmlCtx, htmlCancel := context.WithTimeout(ctx, cfg.ReadTimeout)
	rawHTML, err := page.Context(htmlCtx).HTML()
	htmlCancel()
	if err != nil {
		if initialData != nil {
			slog.Warn("failed to read rendered HTML, using data object only", "video_id", videoID, "error", err)
			return &extract.Snapshot{VideoID: videoID, InitialData: initialData}, nil
		}
		return nil, categorizeError(err, "failed to read rendered HTML")
	}

	snap := &extract.Snapshot{VideoID: videoID, InitialData: initialData}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		slog.Warn("render tree parse failed, falling back to raw text", "video_id", videoID, "error", err)
		snap.RawHTML = rawHTML
		return snap, nil
	}
	snap.Document = doc
	return snap, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw browser errors into scrape failures with a
// message that tells a timeout apart from other navigation faults.
func categorizeError(err error, msg string) *models.RecsError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewRecsError(models.ErrCodeScrapeFailed, msg+": timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewRecsError(models.ErrCodeScrapeFailed, "request canceled", err)
	default:
		return models.NewRecsError(models.ErrCodeScrapeFailed, msg, err)
	}
}
