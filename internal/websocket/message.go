package websocket

import (
	"encoding/json"
	"time"

	"aqi_monitor/internal/feed"
	"aqi_monitor/internal/models"
	"aqi_monitor/internal/stats"
	"aqi_monitor/pkg/utils"
)

// Tipos de mensagem enviados aos clientes
const (
	TypeWelcome  = "welcome"
	TypeSnapshot = "snapshot"
	TypeStatus   = "status"
	TypeHistory  = "history"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeError    = "error"
)

// NewSnapshotMessage cria a mensagem de estado completo. O gráfico leva
// apenas as últimas window leituras; o resumo cobre o histórico inteiro.
func NewSnapshotMessage(snap feed.Snapshot, window int) *models.SnapshotMessage {
	chart := stats.Window(snap.History, window)
	if chart == nil {
		chart = []models.Reading{}
	}
	return &models.SnapshotMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypeSnapshot,
			Timestamp: time.Now(),
		},
		State:         string(snap.State),
		HistoryOrigin: string(snap.HistoryOrigin),
		Current:       snap.Current,
		Status:        snap.Status,
		Summary:       snap.Summary,
		Chart:         chart,
	}
}

// NewStatusMessage cria uma nova mensagem de status
func NewStatusMessage(snap feed.Snapshot) *models.StatusMessage {
	return &models.StatusMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypeStatus,
			Timestamp: time.Now(),
		},
		State:             string(snap.State),
		ExternalConnected: snap.ExternalConnected,
		Status:            snap.Status,
	}
}

// NewHistoryMessage cria uma nova mensagem com o histórico completo
func NewHistoryMessage(snap feed.Snapshot) *models.HistoryMessage {
	history := snap.History
	if history == nil {
		history = []models.Reading{}
	}
	return &models.HistoryMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypeHistory,
			Timestamp: time.Now(),
		},
		Origin:  string(snap.HistoryOrigin),
		History: history,
	}
}

// NewErrorMessage cria uma nova mensagem de erro
func NewErrorMessage(message string, errorCode string) models.WebSocketMessage {
	return models.WebSocketMessage{
		Type:      TypeError,
		Timestamp: time.Now(),
		Error:     message,
		Data: map[string]string{
			"code": errorCode,
		},
	}
}

// SerializeMessage serializa uma mensagem para JSON
func SerializeMessage(message interface{}) ([]byte, error) {
	return json.Marshal(message)
}

// ParseClientCommand analisa um comando recebido do cliente
func ParseClientCommand(data []byte) (models.CommandMessage, error) {
	var command models.CommandMessage
	err := json.Unmarshal(data, &command)
	return command, err
}

// CreatePongResponse cria uma resposta para um ping do cliente
func CreatePongResponse(pingTime int64) *models.PongMessage {
	now := time.Now()
	return &models.PongMessage{
		WebSocketMessage: models.WebSocketMessage{
			Type:      TypePong,
			Timestamp: now,
		},
		Time:       pingTime,
		ServerTime: utils.UnixMillis(now),
	}
}
