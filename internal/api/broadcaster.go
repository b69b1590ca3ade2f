package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

// Broadcaster pushes fresh snapshots to connected websocket clients
type Broadcaster struct {
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
}

// NewBroadcaster creates a snapshot broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// BroadcastSnapshots sends freshly written snapshots to every client. Dead
// connections are dropped.
func (b *Broadcaster) BroadcastSnapshots(snaps []models.SentimentSnapshot) {
	if len(snaps) == 0 {
		return
	}

	msg, err := json.Marshal(map[string]interface{}{
		"type":      "snapshots",
		"snapshots": snaps,
	})
	if err != nil {
		logger.Error("failed to marshal snapshots", zap.Error(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Warn("websocket write failed, dropping client", zap.Error(err))
			c.Close()
			delete(b.clients, c)
		}
	}
}

// ClientCount returns the number of connected clients
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler returns an http.HandlerFunc accepting websocket connections
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		// Read loop keeps the connection alive and detects disconnects
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}
