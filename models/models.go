package models

import "time"

// FeedSource is one configured origin feed
type FeedSource struct {
	Label string `json:"label" toml:"label"`
	Url   string `json:"url" toml:"url"`
}

// FeedItem is one normalized article as persisted in the artifact.
// Link is the identity key across runs.
type FeedItem struct {
	Title          string    `json:"title"`
	Link           string    `json:"link"`
	PubDate        time.Time `json:"pubDate"`
	ContentSnippet string    `json:"contentSnippet"`
	Categories     []string  `json:"categories"`
	Source         string    `json:"source"`
	SourceUrl      string    `json:"sourceUrl"`
	Language       string    `json:"language,omitempty"`
}

// Row is a feed item as presented by the viewer
type Row struct {
	FeedItem
	Age     string   `json:"age"`
	Tags    []string `json:"tags"`
	Starred bool     `json:"starred"`
	Read    bool     `json:"read"`
}

// RebuiltEvent fired when the artifact has been rewritten
type RebuiltEvent struct {
	Items     int       `json:"items"`
	Timestamp time.Time `json:"timestamp"`
}
