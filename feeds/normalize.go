package feeds

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"techfeed/artifact"
	"techfeed/models"
)

var stripPolicy = bluemonday.StrictPolicy()

// ReconcileDate resolves the publish date of an entry. A missing or invalid
// date falls back to the date recorded for the same link in the previous
// run, and only then to now.
func ReconcileDate(item *gofeed.Item, previous artifact.PreviousDates, now time.Time) time.Time {
	if t, ok := entryDate(item); ok {
		return t.UTC()
	}
	if item.Link != "" {
		if t, ok := previous[item.Link]; ok {
			return t
		}
	}
	return now.UTC()
}

// entryDate returns the published date, or the updated date for Atom entries
// that carry only that one
func entryDate(item *gofeed.Item) (time.Time, bool) {
	for _, t := range []*time.Time{item.PublishedParsed, item.UpdatedParsed} {
		if validDate(t) {
			return *t, true
		}
	}
	return time.Time{}, false
}

// validDate rejects dates that cannot round trip through the artifact
func validDate(t *time.Time) bool {
	if t == nil || t.IsZero() {
		return false
	}
	year := t.Year()
	return year >= 1 && year <= 9999
}

// Snippet returns the plain text summary of an entry, preferring the
// description over the full content
func Snippet(item *gofeed.Item) string {
	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}
	if raw == "" {
		return ""
	}

	text := html.UnescapeString(stripPolicy.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}

// Normalize converts a parsed entry to the artifact representation
func Normalize(item *gofeed.Item, source models.FeedSource, feedLink string, previous artifact.PreviousDates, now time.Time) models.FeedItem {
	categories := item.Categories
	if categories == nil {
		categories = []string{}
	}

	return models.FeedItem{
		Title:          item.Title,
		Link:           item.Link,
		PubDate:        ReconcileDate(item, previous, now),
		ContentSnippet: Snippet(item),
		Categories:     categories,
		Source:         source.Label,
		SourceUrl:      feedLink,
	}
}
