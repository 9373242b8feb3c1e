package metrics

import (
	"context"
	"time"

	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
)

// instrumentedStore mede cada operação do store decorado
type instrumentedStore struct {
	next    storage.Store
	metrics *Metrics
}

// InstrumentStore envolve store com medição de duração e erros.
// Com m nil, retorna o próprio store.
func InstrumentStore(store storage.Store, m *Metrics) storage.Store {
	if m == nil {
		return store
	}
	return &instrumentedStore{next: store, metrics: m}
}

func (s *instrumentedStore) Append(ctx context.Context, r models.NewReading) (models.Reading, error) {
	start := time.Now()
	stored, err := s.next.Append(ctx, r)
	if _, invalid := storage.AsValidation(err); invalid {
		// Entrada rejeitada não é falha de armazenamento
		s.metrics.StorageOp("append", time.Since(start), nil)
		return stored, err
	}
	s.metrics.StorageOp("append", time.Since(start), err)
	return stored, err
}

func (s *instrumentedStore) List(ctx context.Context, limit int) ([]models.Reading, error) {
	start := time.Now()
	readings, err := s.next.List(ctx, limit)
	s.metrics.StorageOp("list", time.Since(start), err)
	return readings, err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
