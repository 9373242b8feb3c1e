package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"aqi_monitor/pkg/logger"
)

// Upgrader com buffers pequenos; as mensagens do painel são curtas
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// Handler gerencia conexões WebSocket
type Handler struct {
	hub *Hub
}

// NewHandler cria um novo gerenciador de WebSocket
func NewHandler(hub *Hub) *Handler {
	return &Handler{
		hub: hub,
	}
}

// ServeHTTP implementa a interface http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.HandleWebSocket(w, r)
}

// HandleWebSocket faz o upgrade da conexão e registra o cliente no hub
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("Erro ao fazer upgrade para WebSocket: %v", err)
		return
	}

	userAgent := r.UserAgent()
	ipAddress := getIPAddress(r)
	logger.Debugf("Nova conexão WebSocket de %s (%s)", ipAddress, userAgent)

	client := newClient(h.hub, conn, userAgent, ipAddress)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Register adiciona um cliente ao hub. Retorna false se o hub já parou.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// checkOrigin aceita qualquer origem; o painel é servido de outro host
func checkOrigin(r *http.Request) bool {
	return true
}

// getIPAddress extrai o endereço IP do cliente
func getIPAddress(r *http.Request) string {
	ipAddress := r.Header.Get("X-Real-IP")
	if ipAddress == "" {
		ipAddress = r.Header.Get("X-Forwarded-For")
	}
	if ipAddress == "" {
		ipAddress = r.RemoteAddr
	}
	return ipAddress
}

// GetHealthHandler retorna um handler para verificação de saúde do WebSocket
func (h *Handler) GetHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status    string    `json:"status"`
			Stats     Stats     `json:"stats"`
			Timestamp time.Time `json:"timestamp"`
		}{
			Status:    "ok",
			Stats:     h.hub.GetStats(),
			Timestamp: time.Now(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}
