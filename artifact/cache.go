package artifact

import (
	"fmt"
	"os"
	"sync"
	"time"

	"techfeed/models"
)

// Cache keeps the decoded artifact in memory and reloads it when the file
// changes on disk
type Cache struct {
	sync.RWMutex
	path    string
	modTime time.Time
	items   []models.FeedItem
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

func (c *Cache) Path() string {
	return c.path
}

// Items returns the current artifact. The returned slice is shared and must
// not be modified.
func (c *Cache) Items() ([]models.FeedItem, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	c.RLock()
	if c.items != nil && info.ModTime().Equal(c.modTime) {
		items := c.items
		c.RUnlock()
		return items, nil
	}
	c.RUnlock()

	c.Lock()
	defer c.Unlock()

	items, err := Load(c.path)
	if err != nil {
		return nil, err
	}
	c.items = items
	c.modTime = info.ModTime()

	return items, nil
}

// Invalidate forces the next Items call to reload from disk
func (c *Cache) Invalidate() {
	c.Lock()
	defer c.Unlock()
	c.items = nil
}
