package viewer

import (
	"fmt"
	"time"
	"unicode/utf8"

	"techfeed/models"
)

const (
	maxTags      = 4
	maxTagLength = 20
)

// FormatAge renders how long ago an item was published: hours during the
// first day, days during the first week and the date afterwards
func FormatAge(pubDate time.Time, now time.Time) string {
	diff := now.Sub(pubDate)
	if diff < 0 {
		diff = 0
	}

	hours := int(diff / time.Hour)
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}
	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd ago", days)
	}
	return pubDate.Local().Format("2006-01-02")
}

// DisplayTags keeps the first few short categories of an item
func DisplayTags(categories []string) []string {
	tags := make([]string, 0, maxTags)
	for _, c := range categories {
		if utf8.RuneCountInString(c) >= maxTagLength {
			continue
		}
		tags = append(tags, c)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

// Rows renders the visible window of state
func Rows(state *State, now time.Time) []models.Row {
	window := Window(state)
	rows := make([]models.Row, len(window))
	for i, item := range window {
		rows[i] = models.Row{
			FeedItem: item,
			Age:      FormatAge(item.PubDate, now),
			Tags:     DisplayTags(item.Categories),
			Starred:  state.Starred.Has(item.Link),
			Read:     state.Read.Has(item.Link),
		}
	}
	return rows
}
