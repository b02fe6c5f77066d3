package websocket

import (
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

const clientBuffer = 16

type client struct {
	send chan []byte
}

// enqueue drops the message when the client is too slow to keep up.
func (that *client) enqueue(data []byte) bool {
	select {
	case that.send <- data:
		return true
	default:
		return false
	}
}

// Hub fans match snapshots out to the clients watching each match.
type Hub struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[*client]struct{}
	clients     map[*client]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:      logger.With("component", "websocket-hub"),
		subscribers: make(map[string]map[*client]struct{}),
		clients:     make(map[*client]struct{}),
	}
}

// Publish - sends the snapshot to every subscriber of its match.
func (that *Hub) Publish(match entity.Match) {
	data, err := encode(actionSnapshot, ResponsePayload{Match: &match})
	if err != nil {
		that.logger.Error("failed to encode snapshot", "match_id", match.ID, "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for c := range that.subscribers[match.ID] {
		if !c.enqueue(data) {
			that.logger.Warn("dropped snapshot for slow client", "match_id", match.ID)
		}
	}
}

func (that *Hub) register() *client {
	c := &client{send: make(chan []byte, clientBuffer)}

	that.mu.Lock()
	that.clients[c] = struct{}{}
	that.mu.Unlock()

	return c
}

func (that *Hub) subscribe(c *client, matchID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.clients[c]; !ok {
		return
	}

	if that.subscribers[matchID] == nil {
		that.subscribers[matchID] = make(map[*client]struct{})
	}
	that.subscribers[matchID][c] = struct{}{}
}

// unregister - drops every subscription and closes the client's queue.
func (that *Hub) unregister(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.clients[c]; !ok {
		return
	}

	for matchID, clients := range that.subscribers {
		delete(clients, c)
		if len(clients) == 0 {
			delete(that.subscribers, matchID)
		}
	}

	delete(that.clients, c)
	close(c.send)
}

func (that *Hub) subscriberCount(matchID string) int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.subscribers[matchID])
}
