package services

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bellapacxx/raffle-backend/utils/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans raffle notifications out to connected observers.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.Close()
	}
	h.mu.Unlock()
}

// Broadcast sends {"type": eventType, ...payload} to every observer. Slow
// observers get messages dropped rather than blocking the raffle.
func (h *Hub) Broadcast(eventType string, payload map[string]any) {
	msg := map[string]any{"type": eventType}
	for k, v := range payload {
		msg[k] = v
	}
	b, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("[WS] failed to marshal %s event: %v", eventType, err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		// A departing observer may have its send channel closed between the
		// snapshot above and this send; recover so one observer cannot kill
		// the process.
		func(c *Client) {
			defer func() {
				if r := recover(); r != nil {
					logger.Debugf("[WS] recovered %s broadcast to departed observer: %v", eventType, r)
				}
			}()
			select {
			case c.send <- b:
			default:
				logger.Debugf("[WS] dropping %s event to slow observer", eventType)
			}
		}(c)
	}
}

// HandleWebSocket upgrades an observer connection and sends the current
// raffle snapshot as the first message.
func HandleWebSocket(c *gin.Context) {
	if Raffle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "raffle not initialized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("[WS] upgrade error: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		hub:  Raffle.hub,
		send: make(chan []byte, 32),
	}
	Raffle.hub.add(client)

	snapshot, err := json.Marshal(map[string]any{"type": "state", "state": Raffle.Snapshot()})
	if err == nil {
		select {
		case client.send <- snapshot:
		default:
		}
	}
}
