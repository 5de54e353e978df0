// Package extract turns a page snapshot into an ordered, de-duplicated and
// capped list of related-video items.
//
// Strategies run in strict priority order and the first one that yields at
// least one item wins:
//
//  1. structured  – the secondary results inside the in-page data object,
//     decoded into the modern view-model or the legacy renderer shape
//  2. dom         – recommendation cards in the rendered markup
//  3. heading     – heading+link pattern over raw document text
//  4. rawlink     – any watch link in raw document text (last resort)
//
// Extraction performs no I/O and never fails: the worst case is an empty
// result.
package extract

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
)

// Tier names the strategy that produced a result.
type Tier string

const (
	TierNone       Tier = "none"
	TierStructured Tier = "structured"
	TierDOM        Tier = "dom"
	TierHeading    Tier = "heading"
	TierRawLink    Tier = "rawlink"
)

// Snapshot is the extractable representation of a watch page at one point
// in time. Any combination of fields may be set; missing ones are skipped.
type Snapshot struct {
	// VideoID is the page's own video. Links back to it are ignored.
	VideoID string

	// InitialData is the serialized in-page data object, if it was present.
	InitialData json.RawMessage

	// Document is the queryable render tree of a rendered page.
	Document *goquery.Document

	// RawHTML is the raw document text. Only consulted when Document is nil.
	RawHTML string
}

// HasStructured reports whether the snapshot carries an in-page data object.
func (s *Snapshot) HasStructured() bool {
	return s != nil && len(s.InitialData) > 0
}
