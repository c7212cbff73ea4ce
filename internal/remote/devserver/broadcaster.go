package devserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/readwellapp/readwell-server/internal/id"
)

// client is one connected event-stream consumer.
type client struct {
	id          string
	events      chan []byte
	connectedAt time.Time
}

// broadcaster fans document updates out to connected event-stream clients.
// Sends are non-blocking: a slow client drops frames instead of stalling
// the writer.
type broadcaster struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

func newBroadcaster(logger *slog.Logger) *broadcaster {
	return &broadcaster{
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// connect registers a new client and returns it.
func (b *broadcaster) connect() *client {
	c := &client{
		id:          id.MustGenerate("sse"),
		events:      make(chan []byte, 16),
		connectedAt: time.Now(),
	}

	b.mu.Lock()
	b.clients[c.id] = c
	total := len(b.clients)
	b.mu.Unlock()

	b.logger.Info("event stream client connected", "client_id", c.id, "total_clients", total)
	return c
}

// disconnect removes a client and closes its channel.
func (b *broadcaster) disconnect(clientID string) {
	b.mu.Lock()
	c, ok := b.clients[clientID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.clients, clientID)
	total := len(b.clients)
	b.mu.Unlock()

	close(c.events)
	b.logger.Info("event stream client disconnected",
		"client_id", clientID,
		"duration", time.Since(c.connectedAt),
		"total_clients", total)
}

// broadcast queues a payload for every connected client.
func (b *broadcaster) broadcast(payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, c := range b.clients {
		select {
		case c.events <- payload:
		default:
			b.logger.Warn("dropped frame for slow client", "client_id", c.id)
		}
	}
}

// closeAll disconnects every client. Used during shutdown.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range b.clients {
		close(c.events)
	}
	b.clients = make(map[string]*client)
}
