package websocket

import (
	"context"
	"sync"
	"time"

	"aqi_monitor/internal/feed"
	"aqi_monitor/internal/models"
	"aqi_monitor/pkg/logger"
	"aqi_monitor/pkg/utils"
)

// SnapshotSource fornece o estado atual do seletor de fonte
type SnapshotSource interface {
	Snapshot() feed.Snapshot
}

// Stats resume a atividade do hub
type Stats struct {
	Clients           int     `json:"clients"`
	TotalClients      int64   `json:"totalClients"`
	TotalMessages     int64   `json:"totalMessages"`
	MessagesPerSecond float64 `json:"messagesPerSecond"`
}

// Hub gerencia todas as conexões WebSocket e distribuição de mensagens
type Hub struct {
	// Clientes registrados
	clients map[*Client]bool

	// Canal para registrar clientes
	register chan *Client

	// Canal para desregistrar clientes
	unregister chan *Client

	// Canal para mensagens de broadcast
	broadcast chan []byte

	// Comandos recebidos dos clientes
	commands chan models.ClientCommand

	// Mutex para operações concorrentes no mapa de clientes
	mu sync.RWMutex

	source        SnapshotSource
	displayWindow int

	stats struct {
		totalMessages      int64
		totalClients       int64
		messagesPerSecond  float64
		lastStatsReset     time.Time
		messagesSinceReset int64
	}
	statsLock sync.Mutex

	// Sinal para encerramento do hub
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub cria uma nova instância do Hub
func NewHub(source SnapshotSource, displayWindow int) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		broadcast:     make(chan []byte, 256),
		commands:      make(chan models.ClientCommand, 100),
		source:        source,
		displayWindow: displayWindow,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	h.stats.lastStatsReset = time.Now()

	return h
}

// Run inicia o loop principal do hub para gerenciar clientes e mensagens
func (h *Hub) Run() {
	defer close(h.done)
	logger.Info("Iniciando WebSocket Hub")

	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			logger.Info("Encerrando WebSocket Hub")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()

			logger.Infof("Novo cliente WebSocket conectado. ID: %s. Total: %d", client.id, clientCount)

			h.statsLock.Lock()
			h.stats.totalClients++
			h.statsLock.Unlock()

			h.sendInitialDataToClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.statsLock.Lock()
			h.stats.totalMessages++
			h.stats.messagesSinceReset++
			h.statsLock.Unlock()

			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Canal do cliente cheio, desconectar
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range slow {
				logger.Warnf("Cliente WebSocket %s lento, desconectando", client.id)
				h.removeClient(client)
			}

		case cmd := <-h.commands:
			h.handleClientCommand(cmd)

		case <-statsTicker.C:
			h.statsLock.Lock()
			elapsed := time.Since(h.stats.lastStatsReset).Seconds()
			if elapsed > 0 {
				h.stats.messagesPerSecond = float64(h.stats.messagesSinceReset) / elapsed
			}
			h.stats.messagesSinceReset = 0
			h.stats.lastStatsReset = time.Now()
			mps := h.stats.messagesPerSecond
			total := h.stats.totalMessages
			h.statsLock.Unlock()

			if count := h.ClientCount(); count > 0 {
				logger.Debugf("Estatísticas WebSocket: %d clientes, %.2f msgs/seg, total: %d mensagens",
					count, mps, total)
			}

		case <-pingTicker.C:
			h.sendPingToAllClients()
		}
	}
}

// Unregister remove um cliente do hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// removeClient fecha o canal de envio do cliente uma única vez
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		logger.Infof("Cliente WebSocket desconectado. ID: %s. Total: %d", client.id, len(h.clients))
	}
}

// BroadcastSnapshot envia o estado do seletor para todos os clientes
func (h *Hub) BroadcastSnapshot(snap feed.Snapshot) {
	h.enqueue(NewSnapshotMessage(snap, h.displayWindow), "snapshot")
}

// Follow transmite cada snapshot recebido até o canal ser fechado
func (h *Hub) Follow(snapshots <-chan feed.Snapshot) {
	go func() {
		for snap := range snapshots {
			h.BroadcastSnapshot(snap)
		}
	}()
}

// enqueue serializa e coloca uma mensagem na fila de broadcast
func (h *Hub) enqueue(message interface{}, kind string) {
	jsonMessage, err := SerializeMessage(message)
	if err != nil {
		logger.Error("Erro ao serializar mensagem de "+kind, err)
		return
	}

	select {
	case h.broadcast <- jsonMessage:
	case <-h.ctx.Done():
	}
}

// submit entrega um comando de cliente ao hub
func (h *Hub) submit(cmd models.ClientCommand) {
	select {
	case h.commands <- cmd:
	case <-h.ctx.Done():
	}
}

// handleClientCommand processa comandos recebidos dos clientes
func (h *Hub) handleClientCommand(cmd models.ClientCommand) {
	logger.Debugf("Comando recebido do cliente %s: %s", cmd.ClientID, cmd.Command)

	client := h.getClientByID(cmd.ClientID)
	if client == nil {
		return
	}

	switch cmd.Command {
	case "get_history":
		h.sendTo(client, NewHistoryMessage(h.source.Snapshot()))
	case "get_status":
		h.sendTo(client, NewStatusMessage(h.source.Snapshot()))
	case "get_snapshot":
		h.sendTo(client, NewSnapshotMessage(h.source.Snapshot(), h.displayWindow))
	case "ping":
		h.sendTo(client, CreatePongResponse(pingTime(cmd.Params)))
	default:
		logger.Warnf("Comando desconhecido: %s", cmd.Command)
		h.sendTo(client, NewErrorMessage("Comando desconhecido: "+cmd.Command, "unknown_command"))
	}
}

// pingTime extrai o campo time dos parâmetros de um ping
func pingTime(params interface{}) int64 {
	if paramsMap, ok := params.(map[string]interface{}); ok {
		if timeVal, ok := paramsMap["time"].(float64); ok {
			return int64(timeVal)
		}
	}
	return 0
}

// sendTo envia uma mensagem a um cliente ainda registrado, sem bloquear
func (h *Hub) sendTo(client *Client, message interface{}) {
	jsonMsg, err := SerializeMessage(message)
	if err != nil {
		logger.Error("Erro ao serializar mensagem", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.clients[client] {
		return
	}
	select {
	case client.send <- jsonMsg:
	default:
		logger.Warnf("Buffer do cliente %s cheio, mensagem descartada", client.id)
	}
}

// sendInitialDataToClient envia boas-vindas e o estado atual
func (h *Hub) sendInitialDataToClient(client *Client) {
	welcome := models.WebSocketMessage{
		Type:      TypeWelcome,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message":  "Conectado ao servidor AQI Monitor",
			"clientId": client.id,
		},
	}
	h.sendTo(client, welcome)

	if h.source != nil {
		h.sendTo(client, NewSnapshotMessage(h.source.Snapshot(), h.displayWindow))
	}
}

// Shutdown encerra o hub e espera o loop terminar
func (h *Hub) Shutdown() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		logger.Warn("Tempo esgotado ao encerrar WebSocket Hub")
	}
}

// closeAllClients fecha todas as conexões dos clientes
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// ClientCount retorna o número atual de clientes conectados
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetStats retorna as estatísticas do hub
func (h *Hub) GetStats() Stats {
	h.statsLock.Lock()
	defer h.statsLock.Unlock()
	return Stats{
		Clients:           h.ClientCount(),
		TotalClients:      h.stats.totalClients,
		TotalMessages:     h.stats.totalMessages,
		MessagesPerSecond: h.stats.messagesPerSecond,
	}
}

// getClientByID retorna um cliente pelo seu ID
func (h *Hub) getClientByID(clientID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.id == clientID {
			return client
		}
	}
	return nil
}

// sendPingToAllClients envia ping de aplicação para todos os clientes
func (h *Hub) sendPingToAllClients() {
	if h.ClientCount() == 0 {
		return
	}

	now := time.Now()
	ping := models.PingMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypePing,
			Timestamp: now,
		},
		Time: utils.UnixMillis(now),
	}

	jsonMsg, err := SerializeMessage(ping)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- jsonMsg:
	default:
	}
}
