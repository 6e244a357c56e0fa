package feed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event статус пайплайна для внешних наблюдателей (оверлеи, индикаторы).
type Event struct {
	Type   string  `json:"type"`             // capturing | processing | done | error | level
	Kind   string  `json:"kind,omitempty"`   // dictation | assistant
	Detail string  `json:"detail,omitempty"` // человекочитаемая подпись
	Level  float64 `json:"level,omitempty"`  // RMS 0..1 для type=level
	At     string  `json:"at"`
}

func NewEvent(typ, kind, detail string) Event {
	return Event{Type: typ, Kind: kind, Detail: detail, At: time.Now().Format(time.RFC3339)}
}

func LevelEvent(level float64) Event {
	return Event{Type: "level", Level: level, At: time.Now().Format(time.RFC3339)}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub раздаёт события всем подключённым клиентам. Отстающий клиент
// события теряет: хаб никогда не блокируется на отправке.
type Hub struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Publish сериализует событие один раз и рассылает его всем клиентам.
func (h *Hub) Publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Errorw("failed to marshal feed event", "error", err)
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			h.logger.Debugw("feed client is lagging, dropping event")
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Infow("feed client connected", "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Infow("feed client disconnected", "clients", n)
}

// writePump переливает события из очереди клиента в сокет.
func (c *client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump вычитывает и отбрасывает входящие, чтобы ловить закрытие сокета.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
