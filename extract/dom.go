package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/upnext/models"
)

// Selectors for the rendered recommendation column. Compiled once.
var (
	cardSel = cascadia.MustCompile(
		"ytd-compact-video-renderer, ytd-compact-radio-renderer, yt-lockup-view-model",
	)
	watchLinkSel = cascadia.MustCompile(`a[href*="/watch?v="], a[href*="/watch?"][href*="v="]`)
	titleSel     = cascadia.MustCompile(
		"#video-title, .yt-lockup-metadata-view-model-wiz__title, .yt-lockup-metadata-view-model__title, h3",
	)
	imgSel        = cascadia.MustCompile("img")
	timeStatusSel = cascadia.MustCompile("ytd-thumbnail-overlay-time-status-renderer")
	badgeTextSel  = cascadia.MustCompile(".badge-shape-wiz__text, .yt-badge-shape__text")
)

// extractDOM reads recommendation cards out of the render tree.
func extractDOM(snap *Snapshot, c *collector) {
	snap.Document.FindMatcher(cardSel).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		it, ok := cardItem(card)
		if !ok {
			return true
		}
		return c.add(it)
	})
}

// cardItem builds an item from one card. ok is false when the card has no
// usable watch link.
func cardItem(card *goquery.Selection) (models.Item, bool) {
	link := card.FindMatcher(watchLinkSel).First()
	href, _ := link.Attr("href")
	id := videoIDFromHref(href)
	if id == "" {
		return models.Item{}, false
	}

	title := cleanTitle(card.FindMatcher(titleSel).First().Text())
	if title == "" {
		t, _ := link.Attr("title")
		title = cleanTitle(t)
	}

	thumb := ""
	card.FindMatcher(imgSel).EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		thumb = absoluteURL(src)
		return thumb == ""
	})

	return models.NewItem(id, title, thumb, cardDuration(card)), true
}

// cardDuration prefers the time-status overlay text and falls back to a
// badge whose text looks like a duration.
func cardDuration(card *goquery.Selection) string {
	if s := strings.TrimSpace(card.FindMatcher(timeStatusSel).First().Text()); s != "" {
		return strings.Join(strings.Fields(s), " ")
	}
	d := ""
	card.FindMatcher(badgeTextSel).EachWithBreak(func(_ int, b *goquery.Selection) bool {
		if s := strings.TrimSpace(b.Text()); isDuration(s) {
			d = s
			return false
		}
		return true
	})
	return d
}
