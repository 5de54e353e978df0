package extract

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/use-agent/upnext/models"
)

// watchNextData is the part of the in-page data object that lists the
// secondary ("up next") results. Continuation payloads carry the same entries
// under onResponseReceivedEndpoints.
type watchNextData struct {
	Contents struct {
		TwoColumnWatchNextResults struct {
			SecondaryResults struct {
				SecondaryResults struct {
					Results []json.RawMessage `json:"results"`
				} `json:"secondaryResults"`
			} `json:"secondaryResults"`
		} `json:"twoColumnWatchNextResults"`
	} `json:"contents"`
	OnResponseReceivedEndpoints []struct {
		AppendContinuationItemsAction struct {
			ContinuationItems []json.RawMessage `json:"continuationItems"`
		} `json:"appendContinuationItemsAction"`
	} `json:"onResponseReceivedEndpoints"`
}

// resultEntry is one element of the results list. At most one field is
// expected to be set.
type resultEntry struct {
	Lockup      *lockupViewModel      `json:"lockupViewModel"`
	Compact     *compactVideoRenderer `json:"compactVideoRenderer"`
	ItemSection *struct {
		Contents []json.RawMessage `json:"contents"`
	} `json:"itemSectionRenderer"`
}

// entryKind is the closed set of shapes an entry can decode into.
type entryKind int

const (
	entryUnrecognized entryKind = iota
	entryModern
	entryLegacy
	entrySection
)

// lockupViewModel is the newer view-model shape.
type lockupViewModel struct {
	ContentID   string `json:"contentId"`
	ContentType string `json:"contentType"`
	Metadata    struct {
		LockupMetadataViewModel struct {
			Title struct {
				Content string `json:"content"`
			} `json:"title"`
		} `json:"lockupMetadataViewModel"`
	} `json:"metadata"`
	ContentImage struct {
		ThumbnailViewModel struct {
			Image struct {
				Sources []imageSource `json:"sources"`
			} `json:"image"`
			Overlays json.RawMessage `json:"overlays"`
		} `json:"thumbnailViewModel"`
	} `json:"contentImage"`
}

// compactVideoRenderer is the legacy renderer shape.
type compactVideoRenderer struct {
	VideoID   string    `json:"videoId"`
	Title     textField `json:"title"`
	Thumbnail struct {
		Thumbnails []imageSource `json:"thumbnails"`
	} `json:"thumbnail"`
	LengthText *struct {
		SimpleText    string        `json:"simpleText"`
		Runs          []textRun     `json:"runs"`
		Accessibility accessibility `json:"accessibility"`
	} `json:"lengthText"`
	ThumbnailOverlays []struct {
		TimeStatus *struct {
			Text textField `json:"text"`
		} `json:"thumbnailOverlayTimeStatusRenderer"`
	} `json:"thumbnailOverlays"`
}

type imageSource struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type textRun struct {
	Text string `json:"text"`
}

type textField struct {
	SimpleText string    `json:"simpleText"`
	Runs       []textRun `json:"runs"`
}

type accessibility struct {
	AccessibilityData struct {
		Label string `json:"label"`
	} `json:"accessibilityData"`
}

// String concatenates the runs, or returns the simple text.
func (t textField) String() string {
	if len(t.Runs) == 0 {
		return t.SimpleText
	}
	var b strings.Builder
	for _, r := range t.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// lockupVideoType is the only lockup content type that points at a video.
const lockupVideoType = "LOCKUP_CONTENT_TYPE_VIDEO"

// decodeEntry decodes raw into its tagged variant. Anything that fails to
// decode or carries no known shape is entryUnrecognized.
func decodeEntry(raw json.RawMessage) (resultEntry, entryKind) {
	var e resultEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, entryUnrecognized
	}
	switch {
	case e.Lockup != nil && e.Lockup.ContentID != "":
		if e.Lockup.ContentType != "" && e.Lockup.ContentType != lockupVideoType {
			return e, entryUnrecognized
		}
		return e, entryModern
	case e.Compact != nil && e.Compact.VideoID != "":
		return e, entryLegacy
	case e.ItemSection != nil:
		return e, entrySection
	default:
		return e, entryUnrecognized
	}
}

// secondaryResults returns the raw result entries, preferring the watch page
// layout over continuation payloads.
func secondaryResults(data json.RawMessage) []json.RawMessage {
	var wn watchNextData
	if err := json.Unmarshal(data, &wn); err != nil {
		return nil
	}
	results := wn.Contents.TwoColumnWatchNextResults.SecondaryResults.SecondaryResults.Results
	if len(results) > 0 {
		return results
	}
	for _, ep := range wn.OnResponseReceivedEndpoints {
		results = append(results, ep.AppendContinuationItemsAction.ContinuationItems...)
	}
	return results
}

// extractStructured walks the secondary results once in source order and
// hands each entry to the modern or legacy decoder.
func extractStructured(snap *Snapshot, c *collector) {
	walkEntries(secondaryResults(snap.InitialData), c, 0)
}

// maxSectionDepth bounds itemSectionRenderer nesting.
const maxSectionDepth = 3

func walkEntries(entries []json.RawMessage, c *collector, depth int) bool {
	for _, raw := range entries {
		e, kind := decodeEntry(raw)
		var more bool
		switch kind {
		case entryModern:
			more = c.add(modernItem(e.Lockup))
		case entryLegacy:
			more = c.add(legacyItem(e.Compact))
		case entrySection:
			if depth >= maxSectionDepth {
				continue
			}
			more = walkEntries(e.ItemSection.Contents, c, depth+1)
		default:
			continue
		}
		if !more {
			return false
		}
	}
	return true
}

func modernItem(l *lockupViewModel) models.Item {
	tv := l.ContentImage.ThumbnailViewModel
	return models.NewItem(
		l.ContentID,
		cleanTitle(l.Metadata.LockupMetadataViewModel.Title.Content),
		pickThumbnail(tv.Image.Sources),
		firstDuration(tv.Overlays),
	)
}

func legacyItem(r *compactVideoRenderer) models.Item {
	return models.NewItem(
		r.VideoID,
		cleanTitle(r.Title.String()),
		pickThumbnail(r.Thumbnail.Thumbnails),
		legacyDuration(r),
	)
}

// pickThumbnail prefers the last source (highest resolution by convention),
// then the first, and returns "" when neither has a usable URL.
func pickThumbnail(sources []imageSource) string {
	if len(sources) == 0 {
		return ""
	}
	if u := absoluteURL(sources[len(sources)-1].URL); u != "" {
		return u
	}
	return absoluteURL(sources[0].URL)
}

func legacyDuration(r *compactVideoRenderer) string {
	if lt := r.LengthText; lt != nil {
		if s := strings.TrimSpace(lt.SimpleText); s != "" {
			return s
		}
		if s := strings.TrimSpace(textField{Runs: lt.Runs}.String()); s != "" {
			return s
		}
		if s := strings.TrimSpace(lt.Accessibility.AccessibilityData.Label); s != "" {
			return s
		}
	}
	for _, o := range r.ThumbnailOverlays {
		if o.TimeStatus == nil {
			continue
		}
		if s := strings.TrimSpace(o.TimeStatus.Text.String()); isDuration(s) {
			return s
		}
	}
	return ""
}

// firstDuration scans an arbitrary overlay/badge structure depth-first and
// returns the first string that looks like a duration. Object keys are
// visited in sorted order so the result is deterministic.
func firstDuration(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return scanDuration(v)
}

func scanDuration(v any) string {
	switch t := v.(type) {
	case string:
		if isDuration(t) {
			return strings.TrimSpace(t)
		}
	case []any:
		for _, child := range t {
			if d := scanDuration(child); d != "" {
				return d
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if d := scanDuration(t[k]); d != "" {
				return d
			}
		}
	}
	return ""
}
