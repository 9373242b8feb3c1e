// Package storage define o log de leituras de AQI e a implementação em memória.
// Implementações duráveis ficam em internal/database (PostgreSQL) e internal/redis.
package storage

import (
	"context"

	"aqi_monitor/internal/models"
)

const (
	// DefaultRetention é o limite padrão de leituras mantidas
	DefaultRetention = 100
	// DefaultListLimit é o número de leituras retornado pela API
	DefaultListLimit = 100
)

// Store é um log ordenado, somente de inserção, de leituras de AQI.
// Escritas são serializadas; leituras podem ocorrer em paralelo.
type Store interface {
	// Append valida, atribui ID e persiste a leitura, retornando a cópia armazenada.
	Append(ctx context.Context, r models.NewReading) (models.Reading, error)
	// List retorna as min(limit, total) leituras mais recentes, da mais antiga para a mais nova.
	List(ctx context.Context, limit int) ([]models.Reading, error)
	// Close libera os recursos do armazenamento.
	Close() error
}

// Latest retorna a leitura mais recente do store, ou nil se vazio
func Latest(ctx context.Context, s Store) (*models.Reading, error) {
	readings, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	r := readings[0]
	return &r, nil
}
