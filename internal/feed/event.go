// Package feed arbitra entre a fonte local (simulador e store) e a fonte
// externa (MQTT) e publica o estado resultante para os assinantes.
package feed

import (
	"time"

	"aqi_monitor/internal/models"
)

// State indica de onde vem a leitura atual
type State string

const (
	StateNoFeed    State = "no_feed"
	StateSimulated State = "simulated"
	StateExternal  State = "external"
)

// Origin identifica a fonte de um evento ou do histórico exibido
type Origin string

const (
	OriginLocal    Origin = "local"
	OriginExternal Origin = "external"
)

// EventKind é o tipo de um evento publicado por uma fonte
type EventKind int

const (
	EventReading EventKind = iota
	EventHistory
	EventConnected
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventReading:
		return "reading"
	case EventHistory:
		return "history"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Event é uma mudança anunciada por uma fonte.
// Em EventReading da fonte local, History (se não nil) substitui o histórico local.
type Event struct {
	Origin  Origin
	Kind    EventKind
	Reading *models.Reading
	History []models.Reading
}

// Snapshot é o estado consolidado entregue aos assinantes
type Snapshot struct {
	State             State            `json:"state"`
	Current           *models.Reading  `json:"current,omitempty"`
	Status            *models.Status   `json:"status,omitempty"`
	HistoryOrigin     Origin           `json:"historyOrigin"`
	History           []models.Reading `json:"history"`
	Summary           models.Summary   `json:"summary"`
	ExternalConnected bool             `json:"externalConnected"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}
