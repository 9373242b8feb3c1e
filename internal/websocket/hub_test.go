package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"aqi_monitor/internal/feed"
	"aqi_monitor/internal/models"
)

func newTestSelector(t *testing.T) *feed.Selector {
	sel := feed.NewSelector(100)
	base := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 30; i++ {
		r := models.Reading{ID: int64(i), Value: 40 + i, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		sel.Apply(feed.Event{Origin: feed.OriginLocal, Kind: feed.EventReading, Reading: &r})
	}
	return sel
}

func startHub(t *testing.T, source SnapshotSource) (*Hub, *httptest.Server) {
	hub := NewHub(source, 20)
	go hub.Run()

	srv := httptest.NewServer(NewHandler(hub))
	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readType lê mensagens até encontrar o tipo pedido
func readType(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == msgType {
			return msg
		}
	}
}

func TestHubWelcomeAndSnapshot(t *testing.T) {
	hub, srv := startHub(t, newTestSelector(t))
	conn := dial(t, srv)

	welcome := readType(t, conn, TypeWelcome)
	data := welcome["data"].(map[string]interface{})
	require.NotEmpty(t, data["clientId"])

	snap := readType(t, conn, TypeSnapshot)
	require.Equal(t, "simulated", snap["state"])
	require.Len(t, snap["chart"], 20)
	current := snap["current"].(map[string]interface{})
	require.Equal(t, float64(70), current["value"])
	status := snap["status"].(map[string]interface{})
	require.Equal(t, "Moderate", status["label"])

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubCommands(t *testing.T) {
	_, srv := startHub(t, newTestSelector(t))
	conn := dial(t, srv)
	readType(t, conn, TypeSnapshot)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "get_status"}))
	status := readType(t, conn, TypeStatus)
	require.Equal(t, "simulated", status["state"])
	require.Equal(t, false, status["externalConnected"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "get_history"}))
	history := readType(t, conn, TypeHistory)
	require.Equal(t, "local", history["origin"])
	require.Len(t, history["history"], 30)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "ping", "params": map[string]interface{}{"time": 1234}}))
	pong := readType(t, conn, TypePong)
	require.Equal(t, float64(1234), pong["time"])
	require.NotZero(t, pong["serverTime"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{não é json")))
	errMsg := readType(t, conn, TypeError)
	require.Equal(t, "invalid_format", errMsg["data"].(map[string]interface{})["code"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "reboot"}))
	errMsg = readType(t, conn, TypeError)
	require.Equal(t, "unknown_command", errMsg["data"].(map[string]interface{})["code"])
}

func TestHubFollowBroadcasts(t *testing.T) {
	sel := newTestSelector(t)
	hub, srv := startHub(t, sel)

	snapshots, unsubscribe := sel.Subscribe(8)
	defer unsubscribe()
	<-snapshots // estado inicial
	hub.Follow(snapshots)

	conn := dial(t, srv)
	readType(t, conn, TypeSnapshot)

	ext := models.Reading{Value: 310, Timestamp: time.Now()}
	sel.Apply(feed.Event{Origin: feed.OriginExternal, Kind: feed.EventReading, Reading: &ext})

	snap := readType(t, conn, TypeSnapshot)
	require.Equal(t, "external", snap["state"])
	require.Equal(t, "Hazardous", snap["status"].(map[string]interface{})["label"])
}

func TestHubClientDisconnect(t *testing.T) {
	hub, srv := startHub(t, newTestSelector(t))
	conn := dial(t, srv)
	readType(t, conn, TypeWelcome)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int64(1), hub.GetStats().TotalClients)
}

func TestHealthHandler(t *testing.T) {
	hub := NewHub(newTestSelector(t), 20)
	go hub.Run()
	defer hub.Shutdown()

	rec := httptest.NewRecorder()
	NewHandler(hub).GetHealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/ws/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Stats  Stats  `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, 0, body.Stats.Clients)
}

func TestRegisterAfterShutdown(t *testing.T) {
	hub := NewHub(nil, 20)
	go hub.Run()
	hub.Shutdown()

	require.False(t, hub.Register(&Client{send: make(chan []byte, 1)}))
}
