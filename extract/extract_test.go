package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/upnext/models"
)

// watchData wraps result entries in the watch page layout.
func watchData(entries ...string) json.RawMessage {
	return json.RawMessage(`{"contents":{"twoColumnWatchNextResults":{"secondaryResults":{"secondaryResults":{"results":[` +
		strings.Join(entries, ",") + `]}}}}}`)
}

func lockup(id, title string, sources ...string) string {
	srcs := make([]string, len(sources))
	for i, s := range sources {
		srcs[i] = fmt.Sprintf(`{"url":%q,"width":%d,"height":%d}`, s, 168*(i+1), 94*(i+1))
	}
	return fmt.Sprintf(`{"lockupViewModel":{"contentId":%q,"contentType":"LOCKUP_CONTENT_TYPE_VIDEO",
		"metadata":{"lockupMetadataViewModel":{"title":{"content":%q}}},
		"contentImage":{"thumbnailViewModel":{"image":{"sources":[%s]},
		"overlays":[{"thumbnailOverlayBadgeViewModel":{"thumbnailBadges":[{"thumbnailBadgeViewModel":{"text":"4:13","badgeStyle":"THUMBNAIL_OVERLAY_BADGE_STYLE_DEFAULT"}}]}}]}}}}`,
		id, title, strings.Join(srcs, ","))
}

func compact(id string, runs ...string) string {
	rs := make([]string, len(runs))
	for i, r := range runs {
		rs[i] = fmt.Sprintf(`{"text":%q}`, r)
	}
	return fmt.Sprintf(`{"compactVideoRenderer":{"videoId":%q,"title":{"runs":[%s]},
		"thumbnail":{"thumbnails":[{"url":"https://i.ytimg.com/vi/%s/default.jpg"},{"url":"https://i.ytimg.com/vi/%s/hqdefault.jpg?sqp=x"}]},
		"lengthText":{"simpleText":"12:05","accessibility":{"accessibilityData":{"label":"12 minutes, 5 seconds"}}}}}`,
		id, strings.Join(rs, ","), id, id)
}

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func ids(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestExtract_ModernThumbnailIsLastSource(t *testing.T) {
	snap := &Snapshot{InitialData: watchData(lockup("modern01", "Modern Title",
		"https://i.ytimg.com/vi/modern01/low.jpg",
		"https://i.ytimg.com/vi/modern01/high.jpg",
	))}

	res := Extract(snap, 12)
	require.Len(t, res.Items, 1)
	assert.Equal(t, TierStructured, res.Tier)

	it := res.Items[0]
	assert.Equal(t, "modern01", it.ID)
	assert.Equal(t, "Modern Title", it.Title)
	assert.Equal(t, "https://i.ytimg.com/vi/modern01/high.jpg", it.ThumbnailURL)
	require.NotNil(t, it.Duration)
	assert.Equal(t, "4:13", *it.Duration)
}

func TestExtract_ModernDefaults(t *testing.T) {
	entry := `{"lockupViewModel":{"contentId":"bareID12"}}`
	res := Extract(&Snapshot{InitialData: watchData(entry)}, 12)
	require.Len(t, res.Items, 1)

	it := res.Items[0]
	assert.Equal(t, "bareID12", it.Title)
	assert.Equal(t, models.CanonicalThumbnail("bareID12"), it.ThumbnailURL)
	assert.Nil(t, it.Duration)
}

func TestExtract_ModernSkipsPlaylists(t *testing.T) {
	entry := `{"lockupViewModel":{"contentId":"PLabcdef123","contentType":"LOCKUP_CONTENT_TYPE_PLAYLIST"}}`
	res := Extract(&Snapshot{InitialData: watchData(entry, lockup("video001", "v"))}, 12)
	assert.Equal(t, []string{"video001"}, ids(res.Items))
}

func TestExtract_LegacyTitleRuns(t *testing.T) {
	snap := &Snapshot{InitialData: watchData(compact("abc123XY", "Hello ", "World"))}

	res := Extract(snap, 12)
	require.Len(t, res.Items, 1)

	it := res.Items[0]
	assert.Equal(t, "abc123XY", it.ID)
	assert.Equal(t, "Hello World", it.Title)
	assert.Equal(t, "https://i.ytimg.com/vi/abc123XY/hqdefault.jpg?sqp=x", it.ThumbnailURL)
	assert.Equal(t, "12:05", it.DurationLabel())
}

func TestExtract_LegacyDurationFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  string
	}{
		{
			name:  "accessibility label",
			entry: `{"compactVideoRenderer":{"videoId":"dur00001","lengthText":{"accessibility":{"accessibilityData":{"label":"3 minutes"}}}}}`,
			want:  "3 minutes",
		},
		{
			name: "overlay time status",
			entry: `{"compactVideoRenderer":{"videoId":"dur00002","thumbnailOverlays":[
				{"thumbnailOverlayToggleButtonRenderer":{}},
				{"thumbnailOverlayTimeStatusRenderer":{"text":{"simpleText":"LIVE"}}},
				{"thumbnailOverlayTimeStatusRenderer":{"text":{"simpleText":"1:02:03"}}}]}}`,
			want: "1:02:03",
		},
		{
			name:  "absent",
			entry: `{"compactVideoRenderer":{"videoId":"dur00003"}}`,
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(&Snapshot{InitialData: watchData(tt.entry)}, 12)
			require.Len(t, res.Items, 1)
			assert.Equal(t, tt.want, res.Items[0].DurationLabel())
		})
	}
}

func TestExtract_MixedShapesKeepSourceOrder(t *testing.T) {
	snap := &Snapshot{InitialData: watchData(
		compact("legacy01", "L1"),
		`{"adSlotRenderer":{"foo":1}}`,
		lockup("modern01", "M1"),
		`{"itemSectionRenderer":{"contents":[`+compact("legacy02", "L2")+`,`+lockup("modern02", "M2")+`]}}`,
		`{"compactVideoRenderer":{"videoId":42}}`,
		compact("legacy01", "dup"),
	)}

	res := Extract(snap, 12)
	assert.Equal(t, []string{"legacy01", "modern01", "legacy02", "modern02"}, ids(res.Items))
	assert.Equal(t, "L1", res.Items[0].Title, "first occurrence wins")
}

func TestExtract_CapAndNoDuplicates(t *testing.T) {
	var entries []string
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("vid%05d", i%20)
		if i%2 == 0 {
			entries = append(entries, lockup(id, id))
		} else {
			entries = append(entries, compact(id, id))
		}
	}
	snap := &Snapshot{InitialData: watchData(entries...)}

	for _, max := range []int{0, 5, 12, 50} {
		res := Extract(snap, max)
		want := max
		if max <= 0 || max > models.MaxItems {
			want = models.MaxItems
		}
		assert.Len(t, res.Items, want, "max=%d", max)

		seen := map[string]bool{}
		for i, it := range res.Items {
			assert.False(t, seen[it.ID], "duplicate id %s", it.ID)
			seen[it.ID] = true
			assert.Equal(t, fmt.Sprintf("vid%05d", i), it.ID, "order preserved")
		}
	}
}

func TestExtract_SkipsOwnVideo(t *testing.T) {
	snap := &Snapshot{
		VideoID:     "self0001",
		InitialData: watchData(compact("self0001", "me"), compact("other001", "other")),
	}
	assert.Equal(t, []string{"other001"}, ids(Extract(snap, 12).Items))
}

func TestExtract_ContinuationPayload(t *testing.T) {
	data := json.RawMessage(`{"onResponseReceivedEndpoints":[{"appendContinuationItemsAction":{"continuationItems":[` +
		compact("cont0001", "c") + `]}}]}`)
	assert.Equal(t, []string{"cont0001"}, ids(Extract(&Snapshot{InitialData: data}, 12).Items))
}

const renderedColumn = `<html><body><div id="secondary">
<ytd-compact-video-renderer>
  <a id="thumbnail" href="/watch?v=XyZ_12345&amp;list=RDXyZ_12345&amp;start_radio=1">
    <img src="//i.ytimg.com/vi/XyZ_12345/hqdefault.jpg">
    <ytd-thumbnail-overlay-time-status-renderer><span id="text"> 3:21 </span></ytd-thumbnail-overlay-time-status-renderer>
  </a>
  <h3><span id="video-title" title="Rock &amp; Roll">Rock &amp; Roll</span></h3>
</ytd-compact-video-renderer>
</div></body></html>`

func TestExtract_DOMFallback(t *testing.T) {
	res := Extract(&Snapshot{Document: doc(t, renderedColumn)}, 12)
	require.Len(t, res.Items, 1)
	assert.Equal(t, TierDOM, res.Tier)

	it := res.Items[0]
	assert.Equal(t, "XyZ_12345", it.ID)
	assert.Equal(t, "Rock & Roll", it.Title)
	assert.Equal(t, "https://i.ytimg.com/vi/XyZ_12345/hqdefault.jpg", it.ThumbnailURL)
	assert.Equal(t, "3:21", it.DurationLabel())
}

func TestExtract_DOMDefaultsAndLockupCards(t *testing.T) {
	html := `<yt-lockup-view-model>
	  <a href="https://www.youtube.com/watch?v=lockDom01"><img src="data:image/gif;base64,AAAA"></a>
	  <div class="badge-shape-wiz__text">NEW</div>
	  <div class="badge-shape-wiz__text">10:00</div>
	</yt-lockup-view-model>
	<ytd-compact-video-renderer><a href="/channel/UCxyz">no watch link</a></ytd-compact-video-renderer>`

	res := Extract(&Snapshot{Document: doc(t, html)}, 12)
	require.Len(t, res.Items, 1)

	it := res.Items[0]
	assert.Equal(t, "lockDom01", it.ID)
	assert.Equal(t, "lockDom01", it.Title)
	assert.Equal(t, models.CanonicalThumbnail("lockDom01"), it.ThumbnailURL)
	assert.Equal(t, "10:00", it.DurationLabel())
}

func TestExtract_StructuredWinsOverDOM(t *testing.T) {
	snap := &Snapshot{
		InitialData: watchData(compact("struct01", "s")),
		Document:    doc(t, renderedColumn),
	}
	res := Extract(snap, 12)
	assert.Equal(t, TierStructured, res.Tier)
	assert.Equal(t, []string{"struct01"}, ids(res.Items))
}

func TestExtract_UnrecognizedStructuredFallsThrough(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown shape", `{"contents":{"somethingNew":{}}}`},
		{"not json", `{"contents":`},
		{"wrong types", `{"contents":{"twoColumnWatchNextResults":{"secondaryResults":{"secondaryResults":{"results":"nope"}}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &Snapshot{InitialData: json.RawMessage(tt.data), Document: doc(t, renderedColumn)}
			res := Extract(snap, 12)
			assert.Equal(t, TierDOM, res.Tier)
			assert.Equal(t, []string{"XyZ_12345"}, ids(res.Items))
		})
	}
}

func TestExtract_RawLinkFallback(t *testing.T) {
	raw := `<html><body><a class="x" href="/watch?v=abcdef1">thumb</a><a href="/about">about</a></body></html>`
	res := Extract(&Snapshot{RawHTML: raw}, 12)
	require.Len(t, res.Items, 1)
	assert.Equal(t, TierRawLink, res.Tier)

	it := res.Items[0]
	assert.Equal(t, "abcdef1", it.ID)
	assert.Equal(t, "abcdef1", it.Title)
	assert.Equal(t, models.CanonicalThumbnail("abcdef1"), it.ThumbnailURL)
	assert.Nil(t, it.Duration)
}

func TestExtract_HeadingLinkBeatsRawLink(t *testing.T) {
	raw := `<a href="/watch?v=zzzzzz9">first raw</a>
	<h3 class="title"><a href="/watch?v=head0001&amp;t=3" title="x">Tom &amp;quot;Jerry&amp;quot; &amp; friends</a></h3>`
	res := Extract(&Snapshot{RawHTML: raw}, 12)
	require.Len(t, res.Items, 1)
	assert.Equal(t, TierHeading, res.Tier)
	assert.Equal(t, "head0001", res.Items[0].ID)
	assert.Equal(t, `Tom "Jerry" & friends`, res.Items[0].Title)
}

func TestExtract_RawTiersNeedRawMode(t *testing.T) {
	snap := &Snapshot{RawHTML: `href="/watch?v=abcdef1"`, Document: doc(t, "<p>empty</p>")}
	res := Extract(snap, 12)
	assert.Empty(t, res.Items)
	assert.Equal(t, TierNone, res.Tier)
}

func TestExtract_EmptySnapshots(t *testing.T) {
	for _, snap := range []*Snapshot{nil, {}, {RawHTML: "<html></html>"}} {
		res := Extract(snap, 12)
		assert.NotNil(t, res.Items)
		assert.Empty(t, res.Items)
		assert.Equal(t, TierNone, res.Tier)
	}
}

func TestRunTier_RecoversFromPanic(t *testing.T) {
	boom := strategy{tier: "boom", run: func(*Snapshot, *collector) { panic("malformed") }}
	items, err := runTier(boom, &Snapshot{}, 12)
	assert.Nil(t, items)
	assert.Error(t, err)
}
