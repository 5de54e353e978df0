package extract

import (
	"regexp"

	"github.com/use-agent/upnext/models"
)

var (
	// headingLinkRe is the primary raw-mode pattern: a heading wrapping a
	// watch link whose text is the title.
	headingLinkRe = regexp.MustCompile(
		`(?i)<h3[^>]*>\s*<a[^>]+href=["'][^"']*/watch\?v=([A-Za-z0-9_-]{6,})[^"']*["'][^>]*>([^<]+)</a>`,
	)

	// rawLinkRe matches a watch link in href position.
	rawLinkRe = regexp.MustCompile(
		`(?i)href=["'](?:https?:)?(?://(?:www\.|m\.)?youtube\.com)?/watch\?v=([A-Za-z0-9_-]{6,})`,
	)
)

// extractHeadingLinks is the first raw-mode tier.
func extractHeadingLinks(snap *Snapshot, c *collector) {
	for _, m := range headingLinkRe.FindAllStringSubmatch(snap.RawHTML, -1) {
		if !c.add(models.NewItem(m[1], cleanTitle(m[2]), "", "")) {
			return
		}
	}
}

// extractRawLinks accepts every watch link with id-only metadata. It is the
// lowest-confidence tier.
func extractRawLinks(snap *Snapshot, c *collector) {
	for _, m := range rawLinkRe.FindAllStringSubmatch(snap.RawHTML, -1) {
		if !c.add(models.NewItem(m[1], "", "", "")) {
			return
		}
	}
}
