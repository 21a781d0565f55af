// Package ws pushes pipeline progress events to connected browser
// clients. Clients are passive listeners; the console polls nothing.
package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Event is one progress message broadcast to the console
type Event struct {
	Type    string      `json:"type"`    // job_started, job_progress, job_done, job_failed
	JobID   string      `json:"jobId"`
	Kind    string      `json:"kind"`    // normalize, match, dedup_scan, merge, backfill
	Payload interface{} `json:"payload,omitempty"`
}

// Hub maintains the set of active clients and broadcasts events
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("🖥️ Console client connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				log.Printf("📴 Console client disconnected: %s", client.ID)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Buffer full or client dead, drop the event
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends an event to every connected client. Safe to call from
// any goroutine; a hub that isn't running simply queues until the buffer
// fills.
func (h *Hub) Broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling ws event: %v", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Println("⚠️ WS broadcast buffer full, dropping event")
	}
}
