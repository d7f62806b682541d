package server

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"techfeed/models"
)

// Broadcaster fans rebuild events out to connected SSE clients
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan models.RebuiltEvent
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan models.RebuiltEvent),
	}
}

func (b *Broadcaster) BroadcastRebuilt(event models.RebuiltEvent) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.clients {
		select {
		case client <- event: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping rebuild event for client: %v", id)
		}
	}
}

// AddClient registers a client channel under key
func (b *Broadcaster) AddClient(key string, client chan models.RebuiltEvent) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient closes and forgets the channel of key, if still registered
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Clients() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.clients)
}

// Shutdown closes every client channel, ending their streams
func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}
