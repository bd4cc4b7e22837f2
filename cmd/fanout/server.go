package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/filecoin-project/go-address"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now (TODO: Configure CORS properly in production)
		return true
	},
}

// Server handles WebSocket subscriptions to record notifications
type Server struct {
	hub *Hub
}

// NewServer creates a new Server instance
func NewServer(hub *Hub) *Server {
	return &Server{
		hub: hub,
	}
}

// HandleWebSocket handles WebSocket upgrade and registration
// URL: /ws (all records) or /ws?uploader=f1... (one uploader's records)
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Optional uploader filter; empty subscribes to everything
	uploader := r.URL.Query().Get("uploader")
	if uploader != "" {
		addr, err := address.NewFromString(uploader)
		if err != nil {
			http.Error(w, "invalid uploader address", http.StatusBadRequest)
			return
		}
		uploader = addr.String()
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	// Create client
	client := NewClient(s.hub, conn, uploader)

	// Register client with hub
	s.hub.register <- client

	log.Printf("New WebSocket connection: uploader=%q, remote=%s", uploader, r.RemoteAddr)

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// HandleStats reports connection counts
// GET /stats
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"connections":   s.hub.GetConnectionCount(),
		"subscriptions": s.hub.GetSubscriptionCount(),
	})
}
