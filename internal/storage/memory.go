package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"aqi_monitor/internal/models"
)

// MemoryStore mantém as leituras em uma fatia ordenada por (timestamp, id)
type MemoryStore struct {
	mu        sync.RWMutex
	readings  []models.Reading
	nextID    int64
	retention int
	now       func() time.Time
}

// NewMemoryStore cria um store em memória. retention <= 0 desativa o limite.
func NewMemoryStore(retention int) *MemoryStore {
	return &MemoryStore{
		retention: retention,
		now:       time.Now,
	}
}

// Append insere a leitura na posição cronológica e descarta as mais antigas
// além do limite de retenção
func (s *MemoryStore) Append(ctx context.Context, nr models.NewReading) (models.Reading, error) {
	if err := ctx.Err(); err != nil {
		return models.Reading{}, Unavailable("append", err)
	}

	nr, err := Validate(nr, s.now())
	if err != nil {
		return models.Reading{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := models.Reading{ID: s.nextID, Value: nr.Value, Timestamp: nr.Timestamp}

	// O ID novo é sempre o maior, então o empate em timestamp vai para o fim do grupo
	idx := sort.Search(len(s.readings), func(i int) bool {
		return s.readings[i].Timestamp.After(stored.Timestamp)
	})
	s.readings = append(s.readings, models.Reading{})
	copy(s.readings[idx+1:], s.readings[idx:])
	s.readings[idx] = stored

	if s.retention > 0 && len(s.readings) > s.retention {
		excess := len(s.readings) - s.retention
		s.readings = append(s.readings[:0], s.readings[excess:]...)
	}

	return stored, nil
}

// List retorna cópia das últimas min(limit, total) leituras
func (s *MemoryStore) List(ctx context.Context, limit int) ([]models.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("list", err)
	}
	if limit <= 0 {
		return []models.Reading{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.readings)
	if limit > n {
		limit = n
	}
	out := make([]models.Reading, limit)
	copy(out, s.readings[n-limit:])
	return out, nil
}

// Len retorna o número de leituras armazenadas
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

// Close não tem efeito para o store em memória
func (s *MemoryStore) Close() error {
	return nil
}
