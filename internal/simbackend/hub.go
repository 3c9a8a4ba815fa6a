package simbackend

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// hub fans push-channel frames out to every connected WebSocket client.
type hub struct {
	logger   *logrus.Entry
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

func newHub(logger *logrus.Entry) *hub {
	return &hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			// the dashboard is served from a different origin in dev
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*websocket.Conn),
	}
}

// handleStream upgrades the request and keeps the connection registered
// until the client goes away. Inbound messages are drained and ignored;
// the stream is one-way.
func (h *hub) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Stream upgrade failed")
		return
	}

	clientID := uuid.NewString()
	h.mu.Lock()
	h.clients[clientID] = conn
	h.mu.Unlock()
	h.logger.WithField("client", clientID).Debug("Stream client connected")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, clientID)
	h.mu.Unlock()
	_ = conn.Close()
	h.logger.WithField("client", clientID).Debug("Stream client disconnected")
}

// broadcast sends one event frame to all connected clients. Writes to a
// failed client drop it from the set.
func (h *hub) broadcast(event string, payload interface{}) {
	frame := map[string]interface{}{
		"event":   event,
		"payload": payload,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal push frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.WithField("client", id).WithError(err).Debug("Dropping stream client")
			_ = conn.Close()
			delete(h.clients, id)
		}
	}
}

// closeAll disconnects every client, used at shutdown.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, id)
	}
}
