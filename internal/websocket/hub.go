package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"go-parking-directory/internal/event"
)

// Hub fans public lot events out to every connected websocket client.
type Hub struct {
	// Registered clients. Owned by Run.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	bus       event.Bus
	connected atomic.Int64
	done      chan struct{}
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		bus:        bus,
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.connected.Add(1)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			if !e.Type.Public() {
				continue
			}

			message, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to marshal event", "type", e.Type, "error", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slog.Warn("websocket client too slow, disconnecting", "remote", client.remote)
					h.drop(client)
				}
			}
		}
	}
}

// ClientCount is the number of currently registered clients.
func (h *Hub) ClientCount() int {
	return int(h.connected.Load())
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.connected.Add(-1)
}
