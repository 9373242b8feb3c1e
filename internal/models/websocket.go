package models

import "time"

// WebSocketMessage representa a estrutura base de todas as mensagens WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`            // Tipo da mensagem: "snapshot", "status", "history", etc.
	Timestamp time.Time   `json:"timestamp"`       // Timestamp da mensagem
	Data      interface{} `json:"data,omitempty"`  // Dados adicionais específicos do tipo
	Error     string      `json:"error,omitempty"` // Mensagem de erro, se houver
}

// SnapshotMessage é enviada a cada mudança do seletor de fonte
type SnapshotMessage struct {
	WebSocketMessage
	State         string    `json:"state"`         // no_feed, simulated ou external
	HistoryOrigin string    `json:"historyOrigin"` // Origem do histórico exibido
	Current       *Reading  `json:"current,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	Summary       Summary   `json:"summary"`
	Chart         []Reading `json:"chart"` // Janela de exibição (últimas N leituras)
}

// StatusMessage é uma mensagem específica para o estado da fonte de dados
type StatusMessage struct {
	WebSocketMessage
	State             string  `json:"state"`
	ExternalConnected bool    `json:"externalConnected"`
	Status            *Status `json:"status,omitempty"`
}

// HistoryMessage é uma mensagem específica para o histórico de leituras
type HistoryMessage struct {
	WebSocketMessage
	Origin  string    `json:"origin"`
	History []Reading `json:"history"`
}

// CommandMessage é uma mensagem de comando do cliente para o servidor
type CommandMessage struct {
	Type   string      `json:"type"`             // Tipo de comando: "get_history", "get_status", etc.
	Params interface{} `json:"params,omitempty"` // Parâmetros adicionais
	ID     string      `json:"id,omitempty"`     // ID opcional para correlacionar solicitações/respostas
}

// ClientCommand representa um comando enviado pelo cliente
type ClientCommand struct {
	Command  string      `json:"command"`
	Params   interface{} `json:"params,omitempty"`
	ClientID string      `json:"-"` // Usado internamente, não enviado no JSON
}

// PingMessage representa um ping enviado pelo cliente
type PingMessage struct {
	WebSocketMessage
	Time int64 `json:"time"` // Timestamp em milissegundos
}

// PongMessage representa um pong enviado pelo servidor
type PongMessage struct {
	WebSocketMessage
	Time       int64 `json:"time"`       // Timestamp original do ping
	ServerTime int64 `json:"serverTime"` // Timestamp do servidor em milissegundos
}
