package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	var e Event
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(p, &e))
	return e
}

func newTestFeed(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(zap.NewNop().Sugar())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		c := &client{conn: conn, send: make(chan []byte, 64)}
		hub.register(c)
		go c.writePump()
		go c.readPump(hub)
	}))
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestPublishReachesAllClients(t *testing.T) {
	hub, url := newTestFeed(t)

	c1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c1.Close()
	c2, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c2.Close()

	// Регистрация асинхронная относительно Dial
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 2
	}, time.Second, 10*time.Millisecond)

	hub.Publish(NewEvent("capturing", "dictation", ""))

	for _, c := range []*websocket.Conn{c1, c2} {
		e := readEvent(t, c)
		assert.Equal(t, "capturing", e.Type)
		assert.Equal(t, "dictation", e.Kind)
		assert.NotEmpty(t, e.At)
	}
}

func TestPublishWithNoClients(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	// Не должно ни паниковать, ни блокироваться
	hub.Publish(LevelEvent(0.42))
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, url := newTestFeed(t)

	c1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, time.Second, 10*time.Millisecond)

	c1.Close()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestLevelEventPayload(t *testing.T) {
	e := LevelEvent(0.5)
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"level"`)
	assert.Contains(t, string(data), `"level":0.5`)
}
