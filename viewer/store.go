package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Fixed keys of the two persisted link sets
const (
	StarredKey = "tech_feed_starred"
	ReadKey    = "tech_feed_read"
)

// Store is a string keyed persistent store, the equivalent of browser local
// storage
type Store interface {
	// Get returns the value for key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

// Key scopes key to a namespace, usually one reader
func Key(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}

// LoadIDs reads a link set. Missing keys, read failures and malformed values
// all yield an empty set.
func LoadIDs(ctx context.Context, store Store, key string) IDSet {
	value, ok, err := store.Get(ctx, key)
	if err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Could not read user state, starting empty")
		return IDSet{}
	}
	if !ok || value == "" {
		return IDSet{}
	}

	var ids []string
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Malformed user state, starting empty")
		return IDSet{}
	}
	return NewIDSet(ids...)
}

// SaveIDs writes the complete set as a JSON array of links
func SaveIDs(ctx context.Context, store Store, key string, ids IDSet) error {
	data, err := json.Marshal(ids.Sorted())
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// MemoryStore keeps values in process memory
type MemoryStore struct {
	sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.RLock()
	defer m.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value string) error {
	m.Lock()
	defer m.Unlock()
	m.values[key] = value
	return nil
}

var _ Store = (*MemoryStore)(nil)
