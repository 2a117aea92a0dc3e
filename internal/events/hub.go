package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Subscriber is a single WebSocket connection. An empty LabID receives
// events for every lab.
type Subscriber struct {
	ID    string
	LabID string
	send  chan []byte
}

// Hub tracks WebSocket subscribers and broadcasts report events to them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	bufferSize  int
	upgrader    websocket.Upgrader
	logger      *logrus.Logger
}

// NewHub creates a hub. bufferSize bounds the per-subscriber queue; events
// for a subscriber whose queue is full are dropped.
func NewHub(bufferSize int, logger *logrus.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		bufferSize:  bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Register adds a subscriber filtered to labID.
func (h *Hub) Register(labID string) *Subscriber {
	sub := &Subscriber{
		ID:    uuid.New().String(),
		LabID: labID,
		send:  make(chan []byte, h.bufferSize),
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.EventSubscribers.Set(float64(count))
	return sub
}

// Unregister removes a subscriber and closes its queue.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subscribers, sub)
	close(sub.send)
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.EventSubscribers.Set(float64(count))
}

// Publish implements Publisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		if sub.LabID != "" && sub.LabID != event.LabID {
			continue
		}
		select {
		case sub.send <- data:
		default:
			h.logger.WithFields(logrus.Fields{
				"subscriber": sub.ID,
				"event":      event.Type,
			}).Debug("Subscriber queue full, dropping event")
		}
	}
	return nil
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// ServeWS upgrades the request and streams events until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, labID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := h.Register(labID)
	h.logger.WithFields(logrus.Fields{
		"subscriber": sub.ID,
		"lab_id":     labID,
	}).Info("Event subscriber connected")

	go h.writePump(sub, conn)
	go h.readPump(sub, conn)
	return nil
}

// readPump discards inbound messages; it exists to process control frames
// and notice when the client disconnects.
func (h *Hub) readPump(sub *Subscriber, conn *websocket.Conn) {
	defer func() {
		h.Unregister(sub)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *Subscriber, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
