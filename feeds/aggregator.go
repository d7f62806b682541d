// Package feeds fetches the configured sources and merges them into the
// artifact consumed by the viewer.
package feeds

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"techfeed/artifact"
	"techfeed/models"
)

type Aggregator struct {
	fetcher Fetcher
	output  string
	tagger  *LanguageTagger
	now     func() time.Time
}

type Option func(*Aggregator)

// WithLanguageTagger tags every item with its detected language
func WithLanguageTagger(tagger *LanguageTagger) Option {
	return func(a *Aggregator) {
		a.tagger = tagger
	}
}

// WithClock replaces time.Now, used for items without any known date
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

func NewAggregator(fetcher Fetcher, output string, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher: fetcher,
		output:  output,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Output() string {
	return a.output
}

// FetchSource fetches and normalizes the items of one source. Any failure is
// logged and results in no items; the next run is the retry.
func (a *Aggregator) FetchSource(ctx context.Context, source models.FeedSource, previous artifact.PreviousDates, now time.Time) []models.FeedItem {
	fetchAttempts.WithLabelValues(source.Label).Inc()

	feed, err := a.fetcher.Fetch(ctx, source)
	if err != nil {
		fetchErrors.WithLabelValues(source.Label).Inc()
		sourceItems.WithLabelValues(source.Label).Set(0)
		log.WithFields(log.Fields{
			"source": source.Label,
			"url":    source.Url,
			"error":  err,
		}).Error("Error fetching feed")
		return []models.FeedItem{}
	}

	items := make([]models.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		item := Normalize(entry, source, feed.Link, previous, now)
		if a.tagger != nil {
			item.Language = a.tagger.Tag(item.Title + " " + item.ContentSnippet)
		}
		items = append(items, item)
	}

	sourceItems.WithLabelValues(source.Label).Set(float64(len(items)))
	log.WithFields(log.Fields{
		"source": source.Label,
		"count":  len(items),
	}).Info("Fetched feed")

	return items
}

// Collect fetches all sources concurrently and returns their items merged
// and sorted by publish date, newest first
func (a *Aggregator) Collect(ctx context.Context, sources []models.FeedSource, previous artifact.PreviousDates) []models.FeedItem {
	now := a.now()

	// Every fetch owns its slot, the merge happens after all are done
	results := make([][]models.FeedItem, len(sources))
	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source models.FeedSource) {
			defer wg.Done()
			results[i] = a.FetchSource(ctx, source, previous, now)
		}(i, source)
	}
	wg.Wait()

	items := lo.Flatten(results)
	SortByDate(items)
	return items
}

// Aggregate runs a complete build: previous dates are read from the current
// artifact, all sources are collected and the artifact is replaced
func (a *Aggregator) Aggregate(ctx context.Context, sources []models.FeedSource) ([]models.FeedItem, error) {
	start := time.Now()
	log.WithFields(log.Fields{
		"sources": len(sources),
		"output":  a.output,
	}).Info("Starting feed fetch")

	previous := artifact.ReadPreviousDates(a.output)
	items := a.Collect(ctx, sources, previous)

	// A cancelled run would replace the artifact with a partial batch
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation cancelled: %w", err)
	}

	if err := artifact.Write(a.output, items); err != nil {
		buildErrors.Inc()
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	buildDuration.Observe(time.Since(start).Seconds())
	lastBuild.SetToCurrentTime()
	log.WithFields(log.Fields{
		"items":    len(items),
		"output":   a.output,
		"duration": time.Since(start),
	}).Info("Wrote artifact")

	return items, nil
}

// SortByDate orders items newest first, keeping the fetch order for equal dates
func SortByDate(items []models.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PubDate.After(items[j].PubDate)
	})
}
