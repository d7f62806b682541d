package db

import (
	"context"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"techfeed/models"
	"techfeed/viewer"
)

// Tidy removes read links that are no longer part of the artifact from every
// reader's read set. Starred links are kept even when their item is gone.
// It returns the number of removed links.
func Tidy(ctx context.Context, store *Store, items []models.FeedItem) (int, error) {
	current := viewer.NewIDSet(lo.Map(items, func(item models.FeedItem, _ int) string {
		return item.Link
	})...)

	keys, err := store.KeysWithSuffix(ctx, viewer.ReadKey)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		read := viewer.LoadIDs(ctx, store, key)
		stale := lo.Filter(lo.Keys(read), func(link string, _ int) bool {
			return !current.Has(link)
		})
		if len(stale) == 0 {
			continue
		}

		for _, link := range stale {
			delete(read, link)
		}
		if err := viewer.SaveIDs(ctx, store, key, read); err != nil {
			return removed, err
		}
		removed += len(stale)

		log.WithFields(log.Fields{
			"key":     key,
			"removed": len(stale),
		}).Info("Tidied read links")
	}

	return removed, nil
}
