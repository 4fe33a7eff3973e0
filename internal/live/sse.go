// Package live pushes view updates to browsers over Server-Sent Events and
// WebSockets.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/klabast/wb-services/plaza/internal/metrics"
)

// Message is one pushed update
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data"`
}

// Broadcaster manages Server-Sent Events connections.
type Broadcaster struct {
	clients    map[chan Message]bool
	newClients chan chan Message
	closed     chan chan Message
	events     chan Message
	mu         sync.RWMutex
	logger     *zerolog.Logger

	// initial, when set, produces the first message every new client gets
	initial func() Message
}

// NewBroadcaster creates an SSE broadcaster. initial may be nil.
func NewBroadcaster(logger *zerolog.Logger, initial func() Message) *Broadcaster {
	return &Broadcaster{
		clients:    make(map[chan Message]bool),
		newClients: make(chan chan Message, 10),
		closed:     make(chan chan Message, 10),
		events:     make(chan Message, 256),
		logger:     logger,
		initial:    initial,
	}
}

// Run starts the broadcaster's main loop and blocks until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				close(client)
			}
			b.clients = make(map[chan Message]bool)
			b.mu.Unlock()
			b.logger.Info().Msg("SSE broadcaster shut down")
			return

		case client := <-b.newClients:
			b.mu.Lock()
			b.clients[client] = true
			n := len(b.clients)
			b.mu.Unlock()
			metrics.ClientConnected("sse", 1)
			b.logger.Debug().Int("total_clients", n).Msg("SSE client connected")

		case client := <-b.closed:
			b.mu.Lock()
			if b.clients[client] {
				delete(b.clients, client)
				close(client)
				metrics.ClientConnected("sse", -1)
			}
			n := len(b.clients)
			b.mu.Unlock()
			b.logger.Debug().Int("total_clients", n).Msg("SSE client disconnected")

		case msg := <-b.events:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
					b.logger.Warn().Msg("SSE client buffer full, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected SSE clients.
func (b *Broadcaster) Broadcast(msg Message) {
	select {
	case b.events <- msg:
	default:
		b.logger.Warn().Msg("SSE broadcast channel full, event dropped")
	}
}

// ClientCount returns the number of connected SSE clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP streams messages to one client until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := make(chan Message, 16)
	b.newClients <- client
	defer func() {
		b.closed <- client
	}()

	if b.initial != nil {
		b.write(w, flusher, b.initial())
	}

	for {
		select {
		case msg, ok := <-client:
			if !ok {
				return
			}
			b.write(w, flusher, msg)
		case <-r.Context().Done():
			return
		}
	}
}

func (b *Broadcaster) write(w http.ResponseWriter, flusher http.Flusher, msg Message) {
	if msg.Type != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", msg.Type)
	}
	if msg.ID != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", msg.ID)
	}

	data, err := json.Marshal(msg.Data)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to marshal SSE event data")
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
