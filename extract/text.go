package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// upstreamOrigin resolves relative links and image sources found in markup.
const upstreamOrigin = "https://www.youtube.com"

var (
	// durationRe matches "M:SS", "MM:SS" and "H:MM:SS" labels.
	durationRe = regexp.MustCompile(`^(?:\d{1,2}:)?\d{1,2}:\d{2}$`)

	// watchIDRe pulls the id out of any watch link.
	watchIDRe = regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{6,})`)
)

// DecodeEntities turns HTML entity sequences in a title into literal
// characters. "&amp;" is decoded first so double-escaped sequences such as
// "&amp;quot;" come out as a plain quote.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return html.UnescapeString(strings.ReplaceAll(s, "&amp;", "&"))
}

// cleanTitle decodes entities and collapses runs of whitespace.
func cleanTitle(s string) string {
	return strings.Join(strings.Fields(DecodeEntities(s)), " ")
}

// isDuration reports whether s looks like a duration label.
func isDuration(s string) bool {
	return durationRe.MatchString(strings.TrimSpace(s))
}

// videoIDFromHref returns the v= parameter of a watch link, or "".
func videoIDFromHref(href string) string {
	m := watchIDRe.FindStringSubmatch(href)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// absoluteURL resolves protocol-relative and root-relative URLs against the
// upstream origin. Data URIs and unparsable values yield "".
func absoluteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	base, _ := url.Parse(upstreamOrigin)
	u, err := base.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
