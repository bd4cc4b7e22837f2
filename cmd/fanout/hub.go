package main

import (
	"log"
	"sync"
)

// firehose is the subscription key for clients that want every record
const firehose = ""

// Hub maintains active WebSocket connections and broadcasts record
// notifications. Connections are keyed by the uploader address they
// subscribed to; the empty key receives everything.
type Hub struct {
	connections map[string][]*Client
	mutex       sync.RWMutex

	// Channel for registering clients
	register chan *Client

	// Channel for unregistering clients
	unregister chan *Client

	// Channel for broadcasting messages
	broadcast chan *Message
}

// Message represents a record notification to be broadcast
type Message struct {
	Uploader string
	Data     []byte
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	log.Println("Hub started")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastRecord(message)
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.connections[client.uploader] = append(h.connections[client.uploader], client)
	log.Printf("Client registered: uploader=%q, total_for_uploader=%d",
		client.uploader, len(h.connections[client.uploader]))
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients := h.connections[client.uploader]
	for i, c := range clients {
		if c == client {
			// Remove client from slice
			h.connections[client.uploader] = append(clients[:i], clients[i+1:]...)
			close(client.send)

			// If no more clients for this uploader, remove the map entry
			if len(h.connections[client.uploader]) == 0 {
				delete(h.connections, client.uploader)
			}

			log.Printf("Client unregistered: uploader=%q, remaining_for_uploader=%d",
				client.uploader, len(h.connections[client.uploader]))
			break
		}
	}
}

// broadcastRecord sends a record notification to every firehose client and
// every client subscribed to the record's uploader
func (h *Hub) broadcastRecord(message *Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var clients []*Client
	clients = append(clients, h.connections[firehose]...)
	if message.Uploader != firehose {
		clients = append(clients, h.connections[message.Uploader]...)
	}
	if len(clients) == 0 {
		// Nobody listening for this record, skip
		return
	}

	log.Printf("Broadcasting record: uploader=%s, client_count=%d",
		message.Uploader, len(clients))

	for _, client := range clients {
		select {
		case client.send <- message.Data:
			// Message sent successfully
		default:
			// Client's send buffer is full, close the connection
			log.Printf("Client send buffer full, closing connection: uploader=%q", client.uploader)
			close(client.send)
		}
	}
}

// GetConnectionCount returns the total number of active connections
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, clients := range h.connections {
		count += len(clients)
	}
	return count
}

// GetSubscriptionCount returns the number of distinct subscription keys
func (h *Hub) GetSubscriptionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections)
}
