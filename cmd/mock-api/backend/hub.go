package backend

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// conn is one joined websocket connection.
type conn struct {
	id     string
	userID int64
	ws     *websocket.Conn
	send   chan []byte
}

// hub tracks joined connections per user and fans events out to them.
type hub struct {
	logger *zap.Logger
	mu     sync.Mutex
	conns  map[string]*conn
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		logger: logger.Named("hub"),
		conns:  make(map[string]*conn),
	}
}

// add registers a joined connection and starts its pumps.
func (h *hub) add(userID int64, ws *websocket.Conn) {
	c := &conn{
		id:     uuid.New().String(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, 16),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.logger.Info("connection joined",
		zap.String("conn_id", c.id),
		zap.Int64("user_id", userID))

	go h.writePump(c)
	go h.readPump(c)
}

func (h *hub) remove(c *conn) {
	h.mu.Lock()
	_, ok := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()

	if ok {
		close(c.send)
		c.ws.Close()
	}
}

// push sends an event to every connection the user has joined with.
func (h *hub) push(userID int64, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode event payload", zap.Error(err))
		return
	}
	msg, err := json.Marshal(frame{Event: event, Data: raw})
	if err != nil {
		h.logger.Error("failed to encode frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.conns {
		if c.userID != userID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("connection send buffer full, dropping event",
				zap.String("conn_id", c.id),
				zap.String("event", event))
		}
	}
}

func (h *hub) writePump(c *conn) {
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *hub) readPump(c *conn) {
	defer h.remove(c)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
