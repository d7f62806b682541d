// Package artifact reads and writes the aggregated feed file shared by the
// aggregator and the viewer.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"techfeed/models"
)

// PreviousDates maps item links to the publish date recorded in the last run
type PreviousDates map[string]time.Time

// storedItem mirrors models.FeedItem with a lenient date, so one bad entry
// does not invalidate the whole previous run
type storedItem struct {
	Link    string `json:"link"`
	PubDate string `json:"pubDate"`
}

// ReadPreviousDates returns link -> pubDate for every entry of the artifact at
// path that has a link and a parsable date. A missing or unreadable artifact
// yields an empty map.
func ReadPreviousDates(path string) PreviousDates {
	dates := PreviousDates{}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return dates
	}
	if err != nil {
		log.WithFields(log.Fields{
			"path":  path,
			"error": err,
		}).Warn("Could not read previous artifact")
		return dates
	}

	var items []storedItem
	if err := json.Unmarshal(data, &items); err != nil {
		log.WithFields(log.Fields{
			"path":  path,
			"error": err,
		}).Warn("Could not parse previous artifact")
		return dates
	}

	for _, item := range items {
		if item.Link == "" || item.PubDate == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, item.PubDate)
		if err != nil {
			continue
		}
		dates[item.Link] = t
	}

	return dates
}

// Decode parses an artifact. Null categories are normalized to empty lists.
func Decode(r io.Reader) ([]models.FeedItem, error) {
	var items []models.FeedItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if items == nil {
		items = []models.FeedItem{}
	}
	for i := range items {
		if items[i].Categories == nil {
			items[i].Categories = []string{}
		}
	}
	return items, nil
}

// Load reads and decodes the artifact at path
func Load(path string) ([]models.FeedItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Write replaces the artifact at path with items. The file is written to a
// temporary sibling first and renamed into place.
func Write(path string, items []models.FeedItem) error {
	if items == nil {
		items = []models.FeedItem{}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}

	return nil
}
