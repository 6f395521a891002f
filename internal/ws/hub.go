package ws

import (
	"context"

	"github.com/rs/zerolog"

	"calbook/internal/metrics"
)

// Hub is the single shared broadcast group. Every connected subscriber
// receives every event; there is no per-client filtering. Membership
// changes and broadcasts are serialized through the run loop so concurrent
// connects and disconnects are safe.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	logger     *zerolog.Logger
}

// NewHub creates an empty hub. Call Run before serving connections.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until the context ends. On shutdown all client
// send queues are closed, which terminates their write pumps.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			metrics.SetWSClients(0)
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.SetWSClients(len(h.clients))
			h.logger.Debug().Int64("user_id", client.userID).Int("clients", len(h.clients)).Msg("ws client joined")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.SetWSClients(len(h.clients))
				h.logger.Debug().Int64("user_id", client.userID).Int("clients", len(h.clients)).Msg("ws client left")
			}

		case frame := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Slow consumer: drop it rather than stall the group.
					delete(h.clients, client)
					close(client.send)
				}
			}
			metrics.SetWSClients(len(h.clients))
		}
	}
}

// add joins a client to the hub. Returns false when the hub has already
// shut down, so connections arriving during shutdown never block.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// remove detaches a client. Safe to call after shutdown; the run loop has
// already closed every send queue by then.
func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a frame for delivery to every connected client.
// Best-effort: when the hub is saturated the frame is dropped.
func (h *Hub) Broadcast(frame []byte) {
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn().Msg("broadcast queue full, dropping event")
	}
}
