package models

import "regexp"

// MaxItems is the fixed cap on recommendations returned for one video.
const MaxItems = 12

// videoIDRe is the accepted shape of an upstream video identifier.
var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)

// ValidVideoID reports whether id has the shape of an upstream video id.
func ValidVideoID(id string) bool {
	return videoIDRe.MatchString(id)
}

// Item is one related-video recommendation.
//
// Items are value objects: Title falls back to ID and ThumbnailURL falls back
// to CanonicalThumbnail(ID) when nothing better was recoverable.
type Item struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	ThumbnailURL string  `json:"thumbnailUrl"`
	Duration     *string `json:"durationLabel,omitempty"`
}

// CanonicalThumbnail returns the deterministic id-keyed thumbnail URL.
func CanonicalThumbnail(id string) string {
	return "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg"
}

// NewItem builds an Item, applying the title and thumbnail defaults.
// An empty duration is stored as absent.
func NewItem(id, title, thumbnail, duration string) Item {
	if title == "" {
		title = id
	}
	if thumbnail == "" {
		thumbnail = CanonicalThumbnail(id)
	}
	it := Item{ID: id, Title: title, ThumbnailURL: thumbnail}
	if duration != "" {
		d := duration
		it.Duration = &d
	}
	return it
}

// DurationLabel returns the duration or "" when absent.
func (it Item) DurationLabel() string {
	if it.Duration == nil {
		return ""
	}
	return *it.Duration
}
