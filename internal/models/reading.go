package models

import "time"

const (
	// MinAQI é o menor valor de AQI aceito
	MinAQI = 0
	// MaxAQI é o maior valor de AQI aceito
	MaxAQI = 500
)

// Reading representa uma leitura de AQI já armazenada
type Reading struct {
	ID        int64     `json:"id"`        // Atribuído pelo armazenamento
	Value     int       `json:"value"`     // Sempre em [0, 500]
	Timestamp time.Time `json:"timestamp"` // Momento da leitura
}

// NewReading é uma leitura ainda sem ID, como chega do produtor
type NewReading struct {
	Value     int       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Newer indica se r é mais recente que other, desempatando pelo ID
func (r Reading) Newer(other Reading) bool {
	if r.Timestamp.Equal(other.Timestamp) {
		return r.ID > other.ID
	}
	return r.Timestamp.After(other.Timestamp)
}

// Summary contém as estatísticas de uma janela de leituras
type Summary struct {
	Average int      `json:"average"`
	Peak    int      `json:"peak"`
	Latest  *Reading `json:"latest"`
	Count   int      `json:"count"`
}
