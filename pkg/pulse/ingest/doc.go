package ingest

import "time"

// RawPost is one post as delivered by a fetcher. Hashtags and Mentions come
// from the platform's entity annotations and are bare (no leading # or @).
type RawPost struct {
	ID           string    `json:"id"`
	AuthorHandle string    `json:"author"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	Impressions  *int64    `json:"impressions,omitempty"`
	Hashtags     []string  `json:"hashtags,omitempty"`
	Mentions     []string  `json:"mentions,omitempty"`
}

// NormalizedPost is a RawPost with folded text and a local timestamp.
type NormalizedPost struct {
	ID           string
	AuthorHandle string
	Text         string // as published, entities unescaped
	Folded       string // lower-cased, NFC; all matching runs against this
	Local        time.Time
	Hashtags     []string // "#tag"
	Mentions     []string // "@handle"
	Impressions  int64
}

// ClassifiedPost is a normalized post with its bucket and matches.
type ClassifiedPost struct {
	Bucket      string
	Categories  []string
	Tracked     []string
	URL         string
	Impressions int64
	Text        string
	Hashtags    []string
	Mentions    []string
	Words       []string
}
